package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/naijamart/storefront-backend/pkg/config"
)

var (
	signingMethod = jwt.SigningMethodHS256

	ErrMissingUser  = errors.New("token has no user id")
	ErrInvalidRole  = errors.New("token has invalid role")
	errSecretNeeded = errors.New("jwt secret is required")
)

// MintAccessToken signs a storefront access token. Customer sessions are
// issued elsewhere; this exists for tooling and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	var problems error
	if cfg.Secret == "" {
		problems = multierr.Append(problems, errSecretNeeded)
	}
	if cfg.Issuer == "" {
		problems = multierr.Append(problems, errors.New("jwt issuer is required"))
	}
	if cfg.ExpirationMinutes <= 0 {
		problems = multierr.Append(problems, errors.New("jwt expiration minutes must be positive"))
	}
	if payload.UserID == uuid.Nil {
		problems = multierr.Append(problems, ErrMissingUser)
	}
	if !payload.Role.IsValid() {
		problems = multierr.Append(problems, fmt.Errorf("%w %q", ErrInvalidRole, payload.Role))
	}
	if problems != nil {
		return "", problems
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Email:  payload.Email,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the
// typed claims. Tokens without a user or with an unknown role are rejected.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errSecretNeeded
	}
	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}

	switch {
	case claims.UserID == uuid.Nil:
		return nil, ErrMissingUser
	case !claims.Role.IsValid():
		return nil, fmt.Errorf("%w %q", ErrInvalidRole, claims.Role)
	}
	return claims, nil
}
