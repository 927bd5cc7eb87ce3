package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naijamart/storefront-backend/pkg/auth"
	"github.com/naijamart/storefront-backend/pkg/config"
	"github.com/naijamart/storefront-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())
	for name, header := range map[string]string{
		"missing":      "",
		"garbage":      "Bearer invalid",
		"scheme only":  "Bearer ",
		"other secret": "Bearer " + mustMint(t, config.JWTConfig{Secret: "other", Issuer: "storefront", ExpirationMinutes: 60}),
	} {
		assert.Equal(t, http.StatusUnauthorized, serve(handler, header).Code, name)
	}
}

func mustMint(t *testing.T, cfg config.JWTConfig) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	return token
}

func TestAuthSeedsContext(t *testing.T) {
	userID := uuid.New()
	var gotUser uuid.UUID
	var gotRole string
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserUUIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := serve(handler, "bearer "+mintTestToken(t, userID, enums.UserRoleCustomer))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, enums.UserRoleCustomer.String(), gotRole)
}

func TestRequireRole(t *testing.T) {
	handler := Auth(testJWT, nil)(RequireRole(enums.UserRoleAdmin, nil)(okHandler()))

	customer := serve(handler, "Bearer "+mintTestToken(t, uuid.New(), enums.UserRoleCustomer))
	assert.Equal(t, http.StatusForbidden, customer.Code)
	admin := serve(handler, "Bearer "+mintTestToken(t, uuid.New(), enums.UserRoleAdmin))
	assert.Equal(t, http.StatusOK, admin.Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  BEARER   abc "))
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Equal(t, "", bearerToken("   "))
}

func TestIsAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, IsAdmin(req))
	req = req.WithContext(WithRole(req.Context(), enums.UserRoleAdmin.String()))
	assert.True(t, IsAdmin(req))
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	assert.Equal(t, http.StatusInternalServerError, serve(handler, "").Code)
}

func TestRequestIDEchoesHeader(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, "req-123", resp.Header().Get(requestIDHeader))

	assert.NotEmpty(t, serve(handler, "").Header().Get(requestIDHeader))
}
