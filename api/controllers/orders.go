package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/orders"
	"github.com/naijamart/storefront-backend/internal/payments"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

type shippingAddressRequest struct {
	FullName   string  `json:"fullName" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,max=32,phone"`
	Street     string  `json:"street" validate:"required,max=255"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode *string `json:"postalCode" validate:"omitempty,max=16"`
	Country    string  `json:"country" validate:"omitempty,max=80"`
}

type createOrderRequest struct {
	ShippingAddress shippingAddressRequest `json:"shippingAddress" validate:"required"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required,oneof=card bank_transfer wallet cash_on_delivery"`
	CouponCode      string                 `json:"couponCode" validate:"omitempty,max=40"`
	CustomerNote    *string                `json:"customerNote" validate:"omitempty,max=500"`
}

func (req createOrderRequest) toInput() (payments.CreateInput, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return payments.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	country := strings.TrimSpace(req.ShippingAddress.Country)
	if country == "" {
		country = "Nigeria"
	}
	return payments.CreateInput{
		ShippingAddress: models.ShippingAddress{
			FullName:   strings.TrimSpace(req.ShippingAddress.FullName),
			Phone:      strings.TrimSpace(req.ShippingAddress.Phone),
			Street:     strings.TrimSpace(req.ShippingAddress.Street),
			City:       strings.TrimSpace(req.ShippingAddress.City),
			State:      strings.TrimSpace(req.ShippingAddress.State),
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    country,
		},
		PaymentMethod: method,
		CouponCode:    req.CouponCode,
		CustomerNote:  req.CustomerNote,
	}, nil
}

// CreateOrder checks out the caller's cart.
func CreateOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments service")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListMyOrders returns the caller's orders, newest first.
func ListMyOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "orders service")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// GetMyOrder returns one order owned by the caller.
func GetMyOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "orders service")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// TrackOrder is the public tracking lookup. It never returns customer details.
func TrackOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "orders service")
			return
		}
		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}
		view, err := svc.Track(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
