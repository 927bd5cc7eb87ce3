package controllers

import (
	"net/http"

	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/coupons"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

type validateCouponRequest struct {
	Code     string `json:"code" validate:"required,max=40"`
	Subtotal int64  `json:"subtotal" validate:"required,gt=0"`
}

// ValidateCoupon previews the discount a code would give. Rejections are
// returned as BUSINESS_RULE_VIOLATION with details.reason.
func ValidateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "coupon service")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var req validateCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.Preview(r.Context(), req.Code, req.Subtotal, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}
