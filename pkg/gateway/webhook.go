package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-gateway-signature"

const EventChargeSuccess = "charge.success"

// Sign computes the webhook signature for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// WebhookEvent is the subset of the webhook payload the reconciler reads.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		Reference string      `json:"reference"`
		Status    string      `json:"status"`
	} `json:"data"`
}

// DedupKey identifies a delivery for at-least-once suppression.
func (e WebhookEvent) DedupKey() string {
	id := e.Data.ID.String()
	if id == "" {
		id = e.Data.Reference
	}
	return e.Event + ":" + id
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	err := json.Unmarshal(body, &event)
	return event, err
}
