package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
)

type memoryReplayStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryReplayStore() *memoryReplayStore {
	return &memoryReplayStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryReplayStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryReplayStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryReplayStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryReplayStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func post(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestLookupReplayRule(t *testing.T) {
	cases := []struct {
		method, path string
		ok           bool
		ttl          time.Duration
		required     bool
	}{
		{http.MethodPost, "/api/v1/orders", true, moneyReplayTTL, true},
		{http.MethodPost, "/api/v1/orders/", true, moneyReplayTTL, true},
		{http.MethodPost, "/api/admin/v1/users/7d1c/wallet/credit", true, moneyReplayTTL, true},
		{http.MethodPost, "/api/admin/v1/orders/bulk-status", true, replayTTL, false},
		{http.MethodPost, "/api/v1/tickets/123/messages", true, replayTTL, false},
		{http.MethodGet, "/api/v1/orders", false, 0, false},
		{http.MethodPost, "/api/v1/payments/webhook", false, 0, false},
		{http.MethodPost, "/api/v1/tickets/123/reopen", false, 0, false},
	}
	for _, tc := range cases {
		rule, ok := lookupReplayRule(tc.method, tc.path)
		require.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.path)
		if ok {
			assert.Equal(t, tc.ttl, rule.ttl, tc.path)
			assert.Equal(t, tc.required, rule.keyRequired, tc.path)
		}
	}
}

func TestIdempotencyRequiresKeyOnMoneyRoutes(t *testing.T) {
	called := false
	h := Idempotency(newMemoryReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("/api/v1/orders", "", `{"paymentMethod":"card"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newMemoryReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderNumber":"ORD-1"}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, post("/api/v1/orders", "abc", `{"paymentMethod":"card"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, post("/api/v1/orders", "abc", `{"paymentMethod":"card"}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"orderNumber":"ORD-1"}`, second.Body.String())
	for _, ttl := range store.ttls {
		assert.Equal(t, moneyReplayTTL, ttl)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	h := Idempotency(newMemoryReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/orders", "xyz", `{"paymentMethod":"card"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("/api/v1/orders", "xyz", `{"paymentMethod":"wallet"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyOptionalKeyPassesThrough(t *testing.T) {
	store := newMemoryReplayStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/v1/tickets", "", `{"subject":"late delivery"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/orders", "retry-me", `{}`))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesKeysPerUser(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryReplayStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"user-a", "user-b"} {
		req := post("/api/v1/orders", "shared", `{}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}
