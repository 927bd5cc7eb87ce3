package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/naijamart/storefront-backend/pkg/logger"
)

func serveRequestID(t *testing.T, incoming string) string {
	t.Helper()
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	if incoming != "" {
		req.Header.Set(requestIDHeader, incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Header().Get(requestIDHeader)
}

func TestRequestIDKeepsCallerValue(t *testing.T) {
	if got := serveRequestID(t, "edge-7f3a.42"); got != "edge-7f3a.42" {
		t.Fatalf("expected caller id to be echoed, got %q", got)
	}
}

func TestRequestIDReplacesMissingOrUnsafeValues(t *testing.T) {
	for _, incoming := range []string{"", "bad id with spaces", "<script>", strings.Repeat("a", maxRequestIDLength+1)} {
		got := serveRequestID(t, incoming)
		if _, err := ulid.ParseStrict(got); err != nil {
			t.Fatalf("incoming %q: expected minted ULID, got %q (%v)", incoming, got, err)
		}
	}
}
