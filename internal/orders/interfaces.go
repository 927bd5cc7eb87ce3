package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, their line snapshots
// and tracking log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order, ids IDSource, now time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	MarkPaidIfPending(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error)
	MarkFailedIfPending(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	AppendTrackingEvents(ctx context.Context, orderID uuid.UUID, entries []Entry, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error)
	ListForAdmin(ctx context.Context, filters AdminFilters, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error)
	ListStalePending(ctx context.Context, methods []enums.PaymentMethod, olderThan time.Time, limit int) ([]models.Order, error)
}

// Service exposes read access to orders for customers, admins and the public
// tracking page.
type Service interface {
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	GetForAdmin(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[models.Order], error)
	ListForAdmin(ctx context.Context, filters AdminFilters, params pagination.Params) (*pagination.Page[models.Order], error)
	Track(ctx context.Context, orderNumber string) (*TrackingView, error)
}
