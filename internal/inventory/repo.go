package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
)

// Repository reads catalog rows and applies stock deltas.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	FindVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error)
	CurrentStock(ctx context.Context, target Target) (int, bool, error)
	DecrementFloored(ctx context.Context, target Target, qty int) (bool, error)
	AdjustFloored(ctx context.Context, target Target, delta int) (int, error)
}

// Target addresses the row whose stock counter changes: the variant when
// the line has one, otherwise the product.
type Target struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

func (t Target) table() (any, uuid.UUID) {
	if t.VariantID != nil {
		return &models.ProductVariant{}, *t.VariantID
	}
	return &models.Product{}, t.ProductID
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

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) FindVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductVariant, error) {
	out := make(map[uuid.UUID]models.ProductVariant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) CurrentStock(ctx context.Context, target Target) (int, bool, error) {
	model, id := target.table()
	var levels []int
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Pluck("stock", &levels).Error; err != nil {
		return 0, false, err
	}
	if len(levels) == 0 {
		return 0, false, nil
	}
	return levels[0], true, nil
}

// DecrementFloored subtracts qty in a single statement and clamps at zero.
// It reports false when the row no longer exists.
func (r *repository) DecrementFloored(ctx context.Context, target Target, qty int) (bool, error) {
	model, id := target.table()
	res := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Update("stock", gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", qty, qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdjustFloored applies a signed delta, clamps at zero and returns the new level.
func (r *repository) AdjustFloored(ctx context.Context, target Target, delta int) (int, error) {
	model, id := target.table()
	res := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Update("stock", gorm.Expr("CASE WHEN stock + ? >= 0 THEN stock + ? ELSE 0 END", delta, delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	stock, _, err := r.CurrentStock(ctx, target)
	return stock, err
}
