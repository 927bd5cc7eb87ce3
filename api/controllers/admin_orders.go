package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/fulfillment"
	internalorders "github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const maxBulkOrders = 200

// AdminListOrders returns a filtered, cursor-paginated order listing.
func AdminListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "orders service")
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseAdminFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForAdmin(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parseAdminFilters(r *http.Request) (internalorders.AdminFilters, error) {
	filters := internalorders.AdminFilters{Search: strings.TrimSpace(r.URL.Query().Get("search"))}
	var err error
	if filters.PaymentStatus, err = validators.ParseQueryEnum(r, "paymentStatus", enums.ParsePaymentStatus); err != nil {
		return filters, err
	}
	if filters.DeliveryStatus, err = validators.ParseQueryEnum(r, "deliveryStatus", enums.ParseDeliveryStatus); err != nil {
		return filters, err
	}
	if filters.PaymentMethod, err = validators.ParseQueryEnum(r, "paymentMethod", enums.ParsePaymentMethod); err != nil {
		return filters, err
	}
	return filters, nil
}

// AdminGetOrder returns any order by id.
func AdminGetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "orders service")
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForAdmin(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type updateOrderStatusRequest struct {
	Status         *string `json:"status" validate:"omitempty,oneof=pending processing shipped delivered cancelled"`
	AdminNote      *string `json:"adminNote" validate:"omitempty,max=1000"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=64"`
}

// AdminUpdateOrderStatus applies a tracking number and/or delivery status.
func AdminUpdateOrderStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		actorID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := fulfillment.UpdateInput{
			AdminNote:      req.AdminNote,
			TrackingNumber: req.TrackingNumber,
			ActorID:        actorID,
		}
		if req.Status != nil {
			status := enums.DeliveryStatus(*req.Status)
			input.Status = &status
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type bulkOrderStatusRequest struct {
	OrderIDs  []string `json:"orderIds" validate:"required,min=1,dive,uuid"`
	Status    string   `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
	AdminNote *string  `json:"adminNote" validate:"omitempty,max=1000"`
}

// AdminBulkOrderStatus moves many orders to one status and reports how many
// actually changed.
func AdminBulkOrderStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "fulfillment service")
			return
		}
		actorID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		var req bulkOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(req.OrderIDs) > maxBulkOrders {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many orders in one request").
				WithDetails(map[string]any{"max": maxBulkOrders}))
			return
		}
		ids := make([]uuid.UUID, 0, len(req.OrderIDs))
		for _, raw := range req.OrderIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			ids = append(ids, id)
		}

		modified, err := svc.BulkUpdate(r.Context(), fulfillment.BulkInput{
			OrderIDs:  ids,
			Status:    enums.DeliveryStatus(req.Status),
			AdminNote: req.AdminNote,
			ActorID:   actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"modified": modified})
	}
}
