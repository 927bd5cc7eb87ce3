// Package gateway is a client for the hosted card/bank-transfer payment
// gateway. Amounts cross the wire in minor units (kobo).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.paystack.co"
	responseBodyReadLimit int64 = 1024
	minorUnitsPerNaira          = 100
)

var errSecretKeyRequired = errors.New("payment gateway secret key is required")

// Client talks to the gateway's transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a gateway client. Per-call deadlines come from the
// caller's context; the http.Client timeout is only a backstop.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ToMinor converts whole Naira to kobo.
func ToMinor(naira int64) int64 {
	return naira * minorUnitsPerNaira
}

// InitializeRequest opens a hosted payment session.
type InitializeRequest struct {
	Email       string
	AmountNaira int64
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// Session is the hosted checkout the customer is redirected to.
type Session struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type TransactionStatus string

const (
	StatusSuccess   TransactionStatus = "success"
	StatusFailed    TransactionStatus = "failed"
	StatusAbandoned TransactionStatus = "abandoned"
	StatusReversed  TransactionStatus = "reversed"
	StatusOngoing   TransactionStatus = "ongoing"
	StatusPending   TransactionStatus = "pending"
	StatusNotFound  TransactionStatus = "not_found"
)

// Transaction is the gateway's view of a payment attempt.
type Transaction struct {
	Status      TransactionStatus
	Reference   string
	AmountMinor int64
	PaidAt      *time.Time
	OrderNumber string
	Message     string
}

// Succeeded reports a completed charge.
func (t Transaction) Succeeded() bool {
	return t.Status == StatusSuccess
}

// Definitive reports whether the attempt can no longer succeed.
func (t Transaction) Definitive() bool {
	switch t.Status {
	case StatusFailed, StatusAbandoned, StatusReversed, StatusNotFound:
		return true
	}
	return false
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize opens a payment session keyed by the given reference. It is not
// idempotent on the gateway side, so callers must not retry it.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*Session, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if req.AmountNaira <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payload, err := json.Marshal(map[string]any{
		"email":        req.Email,
		"amount":       ToMinor(req.AmountNaira),
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
		"metadata":     req.Metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal initialize request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("transaction/initialize"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build initialize request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	env, status, err := c.do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute initialize request")
	}
	if status != http.StatusOK || !env.Status {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", status, env.Message), "initialize request rejected")
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AuthorizationURL == "" {
		if err == nil {
			err = errors.New("authorization url missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode initialize response")
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return &Session{AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode, Reference: data.Reference}, nil
}

// Verify fetches the transaction for reference. An unknown reference yields
// StatusNotFound rather than an error; transport and decoding failures are
// dependency errors.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("transaction/verify/"+url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build verify request")
	}

	env, status, err := c.do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute verify request")
	}
	if status == http.StatusNotFound || (status == http.StatusBadRequest && !env.Status) {
		return &Transaction{Status: StatusNotFound, Reference: trimmed, Message: env.Message}, nil
	}
	if status != http.StatusOK {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", status, env.Message), "verify request failed")
	}

	var data struct {
		Status    string     `json:"status"`
		Reference string     `json:"reference"`
		Amount    int64      `json:"amount"`
		PaidAt    *time.Time `json:"paid_at"`
		Message   string     `json:"gateway_response"`
		Metadata  struct {
			OrderNumber string `json:"orderNumber"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode verify response")
	}
	if data.Status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verify response missing status")
	}
	return &Transaction{
		Status:      TransactionStatus(strings.ToLower(data.Status)),
		Reference:   data.Reference,
		AmountMinor: data.Amount,
		PaidAt:      data.PaidAt,
		OrderNumber: data.Metadata.OrderNumber,
		Message:     data.Message,
	}, nil
}

func (c *Client) do(req *http.Request) (envelope, int, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
			return envelope{Message: strings.TrimSpace(string(msg))}, resp.StatusCode, nil
		}
		return envelope{}, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return env, resp.StatusCode, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
