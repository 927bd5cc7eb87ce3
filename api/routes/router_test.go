package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/naijamart/storefront-backend/api/controllers"
	pkgauth "github.com/naijamart/storefront-backend/pkg/auth"
	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubStore struct {
	allowed int64
	hits    int64
}

func (s *stubStore) Get(context.Context, string) (string, error) { return "", nil }

func (s *stubStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (s *stubStore) Del(context.Context, ...string) error { return nil }

func (s *stubStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	s.hits++
	return s.hits <= limit, s.hits, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:              "test",
			Port:             "0",
			VerifyRateLimit:  2,
			VerifyRateWindow: time.Minute,
		},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, store *stubStore) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:  cfg,
		Logger:  logg,
		Store:   store,
		Pingers: map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		Metrics: prometheus.NewRegistry(),
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "ada@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(testConfig(), &stubStore{})
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestCustomerRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), &stubStore{})
	for _, path := range []string{"/api/v1/orders", "/api/v1/wallet", "/api/v1/tickets", "/api/v1/notifications"} {
		resp := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestCustomerRoutesReachHandlersWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))

	// No orders service is wired, so reaching the handler means a 503.
	resp := serve(router, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	router := newTestRouter(testConfig(), &stubStore{})

	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/track/ORD-20260101-ABC123", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("track: expected 503 got %d", resp.Code)
	}
	resp = serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{}`)))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("webhook: expected 503 got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubStore{})

	customer := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	if resp := serve(router, customer); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	if resp := serve(router, admin); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for admin got %d", resp.Code)
	}
}

func TestCreateOrderRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubStore{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))

	if resp := serve(router, req); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}
}

func TestVerifyIsRateLimited(t *testing.T) {
	router := newTestRouter(testConfig(), &stubStore{})
	var last int
	for i := 0; i < 3; i++ {
		resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify?reference=ORD-1", nil))
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit got %d", last)
	}
}
