package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/inventory"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

type stockAdjustRequest struct {
	VariantID *string `json:"variantId" validate:"omitempty,uuid"`
	Delta     int     `json:"delta" validate:"required"`
}

// AdminAdjustStock applies a manual stock correction; the counter never goes
// below zero.
func AdminAdjustStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "inventory service")
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req stockAdjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target := inventory.Target{ProductID: productID}
		if req.VariantID != nil {
			variantID, err := uuid.Parse(*req.VariantID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variant id"))
				return
			}
			target.VariantID = &variantID
		}

		stock, err := svc.Adjust(r.Context(), target, req.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"stock": stock})
	}
}
