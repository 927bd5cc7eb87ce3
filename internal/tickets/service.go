// Package tickets runs the customer support ticket lifecycle, including the
// delayed auto-close of resolved tickets.
package tickets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/outbox"
	"github.com/naijamart/storefront-backend/pkg/outbox/payloads"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

const (
	defaultAutoCloseAfter = 5 * time.Minute
	autoCloseTimeout      = 10 * time.Second
	staleBatchSize        = 500
	maxSubjectLength      = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages support tickets.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.SupportTicket, error)
	Get(ctx context.Context, viewer Viewer, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, viewer Viewer, params ListParams) (pagination.Page[models.SupportTicket], error)
	UpdateStatus(ctx context.Context, id uuid.UUID, input StatusInput) (*models.SupportTicket, error)
	Reopen(ctx context.Context, viewer Viewer, id uuid.UUID) (*models.SupportTicket, error)
	AddMessage(ctx context.Context, viewer Viewer, id uuid.UUID, body string) (*models.TicketMessage, error)
	CloseStale(ctx context.Context) (int, error)
	Shutdown()
}

// Viewer is the caller acting on a ticket. Customers only see their own.
type Viewer struct {
	UserID uuid.UUID
	Admin  bool
}

func (v Viewer) role() enums.UserRole {
	if v.Admin {
		return enums.UserRoleAdmin
	}
	return enums.UserRoleCustomer
}

type CreateInput struct {
	Subject string
	Message string
	OrderID *uuid.UUID
}

type ListParams struct {
	Status *enums.TicketStatus
	Limit  int
	Cursor string
}

// StatusInput is an admin status change. AdminNote alone updates the note.
type StatusInput struct {
	Status    enums.TicketStatus
	AdminNote *string
	ActorID   uuid.UUID
}

// Detail is a ticket with its thread.
type Detail struct {
	Ticket   models.SupportTicket   `json:"ticket"`
	Messages []models.TicketMessage `json:"messages"`
}

type ServiceParams struct {
	TxRunner       txRunner
	Repo           Repository
	Outbox         outboxPublisher
	Logger         *logger.Logger
	AutoCloseAfter time.Duration
	Now            func() time.Time
}

type service struct {
	tx             txRunner
	repo           Repository
	outbox         outboxPublisher
	logg           *logger.Logger
	autoCloseAfter time.Duration
	now            func() time.Time
	timers         *timerSet
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("tickets repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		tx:             params.TxRunner,
		repo:           params.Repo,
		outbox:         params.Outbox,
		logg:           params.Logger,
		autoCloseAfter: params.AutoCloseAfter,
		now:            params.Now,
		timers:         newTimerSet(),
	}
	if svc.autoCloseAfter <= 0 {
		svc.autoCloseAfter = defaultAutoCloseAfter
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// stamp is the current time at the precision postgres stores, so a stamped
// resolved_at compares equal after a round trip.
func (s *service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.SupportTicket, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	subject := strings.TrimSpace(input.Subject)
	message := strings.TrimSpace(input.Message)
	switch {
	case subject == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	case len(subject) > maxSubjectLength:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("subject must be at most %d characters", maxSubjectLength))
	case message == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	ticket := &models.SupportTicket{
		UserID:  userID,
		OrderID: input.OrderID,
		Subject: subject,
		Message: message,
		Status:  enums.TicketStatusOpen,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create ticket")
	}
	s.logg.Info(s.logg.WithField(ctx, "ticket_id", ticket.ID.String()), "support ticket opened")
	return ticket, nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, id uuid.UUID) (*Detail, error) {
	ticket, err := s.load(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	s.closeIfExpired(ctx, ticket)

	messages, err := s.repo.Messages(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ticket messages")
	}
	if messages == nil {
		messages = []models.TicketMessage{}
	}
	return &Detail{Ticket: *ticket, Messages: messages}, nil
}

func (s *service) List(ctx context.Context, viewer Viewer, params ListParams) (pagination.Page[models.SupportTicket], error) {
	filters := Filters{Status: params.Status}
	if !viewer.Admin {
		if viewer.UserID == uuid.Nil {
			return pagination.Page[models.SupportTicket]{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
		}
		filters.UserID = &viewer.UserID
	}
	if params.Status != nil && !params.Status.IsValid() {
		return pagination.Page[models.SupportTicket]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid ticket status")
	}
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return pagination.Page[models.SupportTicket]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	rows, next, err := s.repo.List(ctx, filters, params.Limit, cursor)
	if err != nil {
		return pagination.Page[models.SupportTicket]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list tickets")
	}
	items := make([]models.SupportTicket, 0, len(rows))
	for i := range rows {
		s.closeIfExpired(ctx, &rows[i])
		if params.Status != nil && rows[i].Status != *params.Status {
			continue
		}
		items = append(items, rows[i])
	}
	return pagination.NewPage(items, next), nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, input StatusInput) (*models.SupportTicket, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ticket status")
	}
	ticket, err := s.load(ctx, Viewer{Admin: true}, id)
	if err != nil {
		return nil, err
	}
	if s.closeIfExpired(ctx, ticket) && input.Status != enums.TicketStatusClosed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket was closed automatically")
	}

	actor := &outbox.ActorRef{UserID: input.ActorID, Role: string(enums.UserRoleAdmin)}
	if input.Status == ticket.Status {
		if input.AdminNote == nil {
			return ticket, nil
		}
		if _, err := s.repo.UpdateIfStatus(ctx, id, ticket.Status, map[string]any{"admin_note": strings.TrimSpace(*input.AdminNote)}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update admin note")
		}
		return s.reload(ctx, id)
	}

	extra := map[string]any{}
	if input.AdminNote != nil {
		extra["admin_note"] = strings.TrimSpace(*input.AdminNote)
	}
	if err := s.transition(ctx, ticket, input.Status, extra, actor); err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// Reopen moves a resolved ticket back to open. Closed tickets stay closed.
func (s *service) Reopen(ctx context.Context, viewer Viewer, id uuid.UUID) (*models.SupportTicket, error) {
	ticket, err := s.load(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	s.closeIfExpired(ctx, ticket)
	if ticket.Status != enums.TicketStatusResolved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot reopen a %s ticket", ticket.Status))
	}
	actor := &outbox.ActorRef{UserID: viewer.UserID, Role: string(viewer.role())}
	if err := s.transition(ctx, ticket, enums.TicketStatusOpen, nil, actor); err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// AddMessage appends to the thread. A reply on a resolved ticket pulls it
// back into the queue: open for customers, in progress for admins.
func (s *service) AddMessage(ctx context.Context, viewer Viewer, id uuid.UUID, body string) (*models.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	ticket, err := s.load(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	s.closeIfExpired(ctx, ticket)
	if ticket.Status == enums.TicketStatusClosed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket is closed")
	}

	message := &models.TicketMessage{
		TicketID:   id,
		AuthorID:   viewer.UserID,
		AuthorRole: viewer.role(),
		Body:       body,
	}
	var reopenedTo enums.TicketStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add ticket message")
		}
		if ticket.Status != enums.TicketStatusResolved {
			return nil
		}
		reopenedTo = enums.TicketStatusOpen
		if viewer.Admin {
			reopenedTo = enums.TicketStatusInProgress
		}
		actor := &outbox.ActorRef{UserID: viewer.UserID, Role: string(viewer.role())}
		return s.applyTransition(ctx, tx, ticket, reopenedTo, nil, actor)
	})
	if err != nil {
		return nil, err
	}
	if reopenedTo != "" {
		s.timers.cancel(id)
	}
	return message, nil
}

// CloseStale closes resolved tickets whose auto-close window has passed. It
// covers timers lost to a restart.
func (s *service) CloseStale(ctx context.Context) (int, error) {
	now := s.stamp()
	rows, err := s.repo.ListResolvedBefore(ctx, now.Add(-s.autoCloseAfter), staleBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale tickets")
	}
	closed := 0
	var errs error
	for i := range rows {
		won, err := s.closeResolved(ctx, &rows[i], now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", rows[i].ID, err))
			continue
		}
		if won {
			closed++
		}
	}
	return closed, errs
}

func (s *service) Shutdown() {
	s.timers.stop()
}

func (s *service) load(ctx context.Context, viewer Viewer, id uuid.UUID) (*models.SupportTicket, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ticket")
	}
	if ticket == nil || (!viewer.Admin && ticket.UserID != viewer.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
	}
	return ticket, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload ticket")
	}
	if ticket == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
	}
	return ticket, nil
}

// transition moves the ticket in its own transaction and then arms or
// disarms the auto-close timer.
func (s *service) transition(ctx context.Context, ticket *models.SupportTicket, to enums.TicketStatus, extra map[string]any, actor *outbox.ActorRef) error {
	if !CanTransition(ticket.Status, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move ticket from %s to %s", ticket.Status, to))
	}
	var resolvedAt time.Time
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.applyTransition(ctx, tx, ticket, to, extra, actor); err != nil {
			return err
		}
		if ticket.ResolvedAt != nil {
			resolvedAt = *ticket.ResolvedAt
		}
		return nil
	})
	if err != nil {
		return err
	}
	if to == enums.TicketStatusResolved {
		s.scheduleAutoClose(ctx, ticket.ID, resolvedAt)
	} else {
		s.timers.cancel(ticket.ID)
	}
	return nil
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, ticket *models.SupportTicket, to enums.TicketStatus, extra map[string]any, actor *outbox.ActorRef) error {
	now := s.stamp()
	fields := statusFields(to, now)
	for k, v := range extra {
		fields[k] = v
	}
	won, err := s.repo.WithTx(tx).UpdateIfStatus(ctx, ticket.ID, ticket.Status, fields)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update ticket status")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "ticket changed concurrently; reload and retry")
	}
	from := ticket.Status
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTicketStatusChanged,
		AggregateType: enums.AggregateTicket,
		AggregateID:   ticket.ID,
		Actor:         actor,
		Data: payloads.TicketStatusChangedEvent{
			TicketID: ticket.ID,
			UserID:   ticket.UserID,
			Subject:  ticket.Subject,
			From:     from,
			To:       to,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue ticket event")
	}

	ticket.Status = to
	switch to {
	case enums.TicketStatusResolved:
		ticket.ResolvedAt = &now
		ticket.ClosedAt = nil
	case enums.TicketStatusClosed:
		ticket.ClosedAt = &now
	default:
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"ticket_id": ticket.ID.String(),
		"from":      from,
		"to":        to,
	})
	s.logg.Info(logCtx, "ticket status changed")
	return nil
}

func (s *service) scheduleAutoClose(ctx context.Context, id uuid.UUID, resolvedAt time.Time) {
	logg := s.logg
	s.timers.schedule(id, s.autoCloseAfter, func() {
		fireCtx, cancel := context.WithTimeout(context.Background(), autoCloseTimeout)
		defer cancel()
		fireCtx = logg.WithField(fireCtx, "ticket_id", id.String())
		if err := s.autoClose(fireCtx, id, resolvedAt); err != nil {
			logg.Error(fireCtx, "ticket auto-close failed", err)
		}
	})
	s.logg.Debug(s.logg.WithField(ctx, "ticket_id", id.String()), "ticket auto-close scheduled")
}

// autoClose runs when a timer fires. The ticket may have moved on since the
// timer was armed, so it is re-read and closed only if it is still the same
// resolution.
func (s *service) autoClose(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error {
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ticket == nil || ticket.Status != enums.TicketStatusResolved || ticket.ResolvedAt == nil {
		return nil
	}
	if !ticket.ResolvedAt.Equal(resolvedAt) {
		return nil
	}
	_, err = s.closeResolved(ctx, ticket, s.stamp())
	return err
}

// closeIfExpired is the read-path check. It reports whether it closed the
// ticket. Failures are logged; the caller still gets the ticket as loaded.
func (s *service) closeIfExpired(ctx context.Context, ticket *models.SupportTicket) bool {
	if ticket.Status != enums.TicketStatusResolved || ticket.ResolvedAt == nil {
		return false
	}
	now := s.stamp()
	if now.Before(ticket.ResolvedAt.Add(s.autoCloseAfter)) {
		return false
	}
	won, err := s.closeResolved(ctx, ticket, now)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "ticket_id", ticket.ID.String()), "lazy ticket close failed", err)
		return false
	}
	return won
}

func (s *service) closeResolved(ctx context.Context, ticket *models.SupportTicket, now time.Time) (bool, error) {
	var won bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).UpdateIfStatus(ctx, ticket.ID, enums.TicketStatusResolved, statusFields(enums.TicketStatusClosed, now))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTicketStatusChanged,
			AggregateType: enums.AggregateTicket,
			AggregateID:   ticket.ID,
			Data: payloads.TicketStatusChangedEvent{
				TicketID: ticket.ID,
				UserID:   ticket.UserID,
				Subject:  ticket.Subject,
				From:     enums.TicketStatusResolved,
				To:       enums.TicketStatusClosed,
			},
		})
	})
	if err != nil {
		return false, err
	}
	if won {
		s.timers.cancel(ticket.ID)
		ticket.Status = enums.TicketStatusClosed
		ticket.ClosedAt = &now
		s.logg.Info(s.logg.WithField(ctx, "ticket_id", ticket.ID.String()), "resolved ticket auto-closed")
	}
	return won, nil
}
