package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

// Repository persists support tickets and their threads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ticket *models.SupportTicket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error)
	List(ctx context.Context, filters Filters, limit int, cursor *pagination.Cursor) ([]models.SupportTicket, *pagination.Cursor, error)
	// UpdateIfStatus applies fields only while the ticket is still in status
	// from. It reports whether a row changed.
	UpdateIfStatus(ctx context.Context, id uuid.UUID, from enums.TicketStatus, fields map[string]any) (bool, error)
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.SupportTicket, error)
	AddMessage(ctx context.Context, message *models.TicketMessage) error
	Messages(ctx context.Context, ticketID uuid.UUID) ([]models.TicketMessage, error)
}

// Filters narrows a ticket listing. A nil UserID lists every customer.
type Filters struct {
	UserID *uuid.UUID
	Status *enums.TicketStatus
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ticket *models.SupportTicket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) List(ctx context.Context, filters Filters, limit int, cursor *pagination.Cursor) ([]models.SupportTicket, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.SupportTicket{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return pagination.Fetch(query, limit, cursor, func(t models.SupportTicket) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
}

func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, from enums.TicketStatus, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.SupportTicket, error) {
	var rows []models.SupportTicket
	err := r.db.WithContext(ctx).
		Where("status = ? AND resolved_at IS NOT NULL AND resolved_at <= ?", enums.TicketStatusResolved, cutoff).
		Order("resolved_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) AddMessage(ctx context.Context, message *models.TicketMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) Messages(ctx context.Context, ticketID uuid.UUID) ([]models.TicketMessage, error) {
	var rows []models.TicketMessage
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
