package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	"github.com/naijamart/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func isNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "uq_orders_order_number") || db.IsUniqueViolation(err, "orders.order_number")
}

// Create inserts the order with its items and tracking events, minting the
// order number. A collision on the number is retried with a wider suffix;
// each attempt runs in its own savepoint so a failed insert does not poison
// an enclosing transaction.
func (r *repository) Create(ctx context.Context, order *models.Order, ids IDSource, now time.Time) error {
	if ids == nil {
		ids = defaultIDSource
	}
	var lastErr error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		order.OrderNumber = FormatNumber(now, ids(), attempt)
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(order).Error
		})
		if err == nil {
			return nil
		}
		if !isNumberCollision(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("order number still colliding after %d attempts: %w", maxNumberRetries, lastErr)
}

func (r *repository) detailQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items").
		Preload("TrackingEvents", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") })
}

func firstOrNil(q *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := q.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByID returns nil, nil when the order does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return firstOrNil(r.detailQuery(ctx).Where("id = ?", id))
}

// FindByReference matches either the order number or the stored payment reference.
func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	return firstOrNil(r.detailQuery(ctx).Where("order_number = ? OR payment_reference = ?", reference, reference))
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return firstOrNil(r.detailQuery(ctx).Where("order_number = ?", orderNumber))
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaidIfPending is the idempotency boundary for payment confirmation:
// only one caller can move an order out of pending.
func (r *repository) MarkPaidIfPending(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"paid_at":        paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkFailedIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Update("payment_status", enums.PaymentStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) AppendTrackingEvents(ctx context.Context, orderID uuid.UUID, entries []Entry, at time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]models.TrackingEvent, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, models.TrackingEvent{
			OrderID:   orderID,
			Status:    entry.Status,
			Location:  entry.Location,
			Message:   entry.Message,
			CreatedAt: at,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// Delete removes an order and its children. Only used to roll back an order
// whose payment session could not be opened.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("order_id = ?", id).Delete(&models.TrackingEvent{}).Error; err != nil {
		return err
	}
	if err := conn.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&models.Order{}).Error
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID)
	return r.page(query, limit, cursor)
}

func (r *repository) ListForAdmin(ctx context.Context, filters AdminFilters, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Preload("Items")
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.DeliveryStatus != nil {
		query = query.Where("delivery_status = ?", *filters.DeliveryStatus)
	}
	if filters.PaymentMethod != nil {
		query = query.Where("payment_method = ?", *filters.PaymentMethod)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		query = query.Where("UPPER(order_number) LIKE ?", "%"+strings.ToUpper(search)+"%")
	}
	return r.page(query, limit, cursor)
}

func (r *repository) page(query *gorm.DB, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	return pagination.Fetch(query, limit, cursor, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
}

// ListStalePending returns the oldest orders still awaiting payment through
// one of methods and created before olderThan.
func (r *repository) ListStalePending(ctx context.Context, methods []enums.PaymentMethod, olderThan time.Time, limit int) ([]models.Order, error) {
	if len(methods) == 0 {
		return nil, nil
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_method IN ? AND created_at < ?", enums.PaymentStatusPending, methods, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
