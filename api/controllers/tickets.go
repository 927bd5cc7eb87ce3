package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/api/middleware"
	"github.com/naijamart/storefront-backend/api/responses"
	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/tickets"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const maxTicketMessage = 4000

func viewerFor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (tickets.Viewer, bool) {
	userID, ok := requireUser(w, r, logg)
	if !ok {
		return tickets.Viewer{}, false
	}
	return tickets.Viewer{UserID: userID, Admin: middleware.IsAdmin(r)}, true
}

type createTicketRequest struct {
	Subject string  `json:"subject" validate:"required,max=200"`
	Message string  `json:"message" validate:"required"`
	OrderID *string `json:"orderId" validate:"omitempty,uuid"`
}

// CreateTicket opens a support ticket for the caller.
func CreateTicket(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tickets service")
			return
		}
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		var req createTicketRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := tickets.CreateInput{
			Subject: validators.SanitizeString(req.Subject, 200),
			Message: validators.SanitizeString(req.Message, maxTicketMessage),
		}
		if req.OrderID != nil {
			orderID, err := uuid.Parse(*req.OrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			input.OrderID = &orderID
		}

		ticket, err := svc.Create(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ticket)
	}
}

// GetTicket returns a ticket with its message thread.
func GetTicket(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tickets service")
			return
		}
		viewer, ok := viewerFor(w, r, logg)
		if !ok {
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), viewer, ticketID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// ListTickets lists the caller's tickets; admins see every ticket.
func ListTickets(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tickets service")
			return
		}
		viewer, ok := viewerFor(w, r, logg)
		if !ok {
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := tickets.ListParams{Limit: page.Limit, Cursor: page.Cursor}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseTicketStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), viewer, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReopenTicket moves a resolved ticket back to open.
func ReopenTicket(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tickets service")
			return
		}
		viewer, ok := viewerFor(w, r, logg)
		if !ok {
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticket, err := svc.Reopen(r.Context(), viewer, ticketID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticket)
	}
}

type ticketMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

// AddTicketMessage appends a reply to the thread.
func AddTicketMessage(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tickets service")
			return
		}
		viewer, ok := viewerFor(w, r, logg)
		if !ok {
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req ticketMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		msg, err := svc.AddMessage(r.Context(), viewer, ticketID, validators.SanitizeString(req.Body, maxTicketMessage))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, msg)
	}
}

type ticketStatusRequest struct {
	Status    string  `json:"status" validate:"required,oneof=open in_progress resolved closed"`
	AdminNote *string `json:"adminNote" validate:"omitempty,max=1000"`
}

// AdminUpdateTicketStatus changes a ticket's status. Resolving starts the
// auto-close countdown.
func AdminUpdateTicketStatus(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tickets service")
			return
		}
		actorID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req ticketStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticket, err := svc.UpdateStatus(r.Context(), ticketID, tickets.StatusInput{
			Status:    enums.TicketStatus(req.Status),
			AdminNote: req.AdminNote,
			ActorID:   actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticket)
	}
}
