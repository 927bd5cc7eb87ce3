package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/api/middleware"
	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

// requireUser resolves the authenticated caller or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return userID, true
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// serviceUnavailable reports an unwired service as a retryable 503.
func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, name+" unavailable"))
}

// userHandler serves a JSON 200 from fn for an authenticated caller. A nil
// service is reported before authentication is checked.
func userHandler(available bool, name string, logg *logger.Logger, fn func(r *http.Request, userID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			serviceUnavailable(w, r, logg, name)
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		data, err := fn(r, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}
