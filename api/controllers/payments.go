package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/internal/payments"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/gateway"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// VerifyPayment reconciles a payment reference. Gateway outcomes, including
// declines and transient failures, are reported in a 200 body.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments service")
			return
		}
		reference := strings.TrimSpace(r.URL.Query().Get("reference"))
		if reference == "" {
			// Paystack-style redirects send trxref alongside reference.
			reference = strings.TrimSpace(r.URL.Query().Get("trxref"))
		}
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}
		result, err := svc.Verify(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentWebhook accepts signed gateway callbacks. The raw body is needed for
// the signature check, so it is read before any decoding.
func PaymentWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments service")
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		signature := strings.TrimSpace(r.Header.Get(gateway.SignatureHeader))
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature"))
			return
		}
		if err := svc.HandleWebhook(r.Context(), body, signature); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
