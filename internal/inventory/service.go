package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/pricing"
	"github.com/naijamart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
	"github.com/naijamart/storefront-backend/pkg/metrics"
)

// Line is one requested purchase.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

func (l Line) target() Target {
	return Target{ProductID: l.ProductID, VariantID: l.VariantID}
}

// stockKey identifies the counter a line draws from.
type stockKey struct {
	product uuid.UUID
	variant uuid.UUID
}

func (l Line) stockKey() stockKey {
	key := stockKey{product: l.ProductID}
	if l.VariantID != nil {
		key.variant = *l.VariantID
	}
	return key
}

// Resolved is a line joined with the catalog data needed to snapshot it.
type Resolved struct {
	Line
	Name           string
	SKU            string
	UnitPrice      int64
	Image          *string
	Attributes     map[string]string
	WalletDiscount *pricing.WalletDiscount
}

// CommitResult reports what a stock commit did. Shortfall is the number of
// units the counter could not cover and was clamped away.
type CommitResult struct {
	Found     bool
	Shortfall int
}

// Service owns stock availability checks and post-payment decrements.
type Service interface {
	CheckAvailability(ctx context.Context, lines []Line) ([]Resolved, error)
	Commit(ctx context.Context, tx *gorm.DB, line Line) (CommitResult, error)
	Adjust(ctx context.Context, target Target, delta int) (int, error)
}

type ServiceParams struct {
	Repo    Repository
	Logger  *logger.Logger
	Metrics *metrics.OrderMetrics
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger, metrics: params.Metrics}, nil
}

// CheckAvailability is read-only. Stock is not held between this check and
// the commit that follows payment.
func (s *service) CheckAvailability(ctx context.Context, lines []Line) ([]Resolved, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	variantIDs := make([]uuid.UUID, 0, len(lines))
	requested := make(map[stockKey]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		requested[line.stockKey()] += line.Quantity
		productIDs = append(productIDs, line.ProductID)
		if line.VariantID != nil {
			variantIDs = append(variantIDs, *line.VariantID)
		}
	}

	products, err := s.repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	variants, err := s.repo.FindVariants(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}

	out := make([]Resolved, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is unavailable").
				WithDetails(map[string]any{"productId": line.ProductID})
		}

		resolved := Resolved{
			Line:           line,
			Name:           product.Name,
			SKU:            product.SKU,
			UnitPrice:      product.Price,
			Image:          product.Image,
			WalletDiscount: walletDiscountOf(product),
		}
		available := product.Stock

		if line.VariantID != nil {
			variant, ok := variants[*line.VariantID]
			if !ok || variant.ProductID != product.ID {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing or invalid variant").
					WithDetails(map[string]any{"productId": line.ProductID, "variantId": *line.VariantID})
			}
			resolved.SKU = variant.SKU
			resolved.Attributes = variant.Attributes
			if variant.Price != nil {
				resolved.UnitPrice = *variant.Price
			}
			available = variant.Stock
		}

		// Lines sharing a counter are checked against their combined quantity.
		if want := requested[line.stockKey()]; available < want {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "insufficient stock").
				WithDetails(map[string]any{
					"productId": line.ProductID,
					"requested": want,
					"available": available,
				})
		}
		out = append(out, resolved)
	}
	return out, nil
}

func walletDiscountOf(p models.Product) *pricing.WalletDiscount {
	if !p.WalletDiscountActive || !p.WalletDiscountPercent.IsPositive() {
		return nil
	}
	return &pricing.WalletDiscount{
		Percent:   p.WalletDiscountPercent,
		Active:    p.WalletDiscountActive,
		ExpiresAt: p.WalletDiscountExpiresAt,
	}
}

// Commit decrements stock for a paid line, clamping at zero. A missing row is
// reported through Found rather than as an error.
func (s *service) Commit(ctx context.Context, tx *gorm.DB, line Line) (CommitResult, error) {
	repo := s.repo.WithTx(tx)
	target := line.target()

	before, found, err := repo.CurrentStock(ctx, target)
	if err != nil {
		return CommitResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read stock")
	}
	if !found {
		return CommitResult{}, nil
	}
	updated, err := repo.DecrementFloored(ctx, target, line.Quantity)
	if err != nil {
		return CommitResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit stock")
	}

	result := CommitResult{Found: updated}
	if before < line.Quantity {
		result.Shortfall = line.Quantity - before
		s.metrics.AddOversell(result.Shortfall)
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": line.ProductID.String(),
			"requested":  line.Quantity,
			"available":  before,
		})
		s.logg.Warn(logCtx, "stock oversold after payment, clamped to zero")
	}
	return result, nil
}

// Adjust applies a manual stock correction and returns the new level.
func (s *service) Adjust(ctx context.Context, target Target, delta int) (int, error) {
	if delta == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	stock, err := s.repo.AdjustFloored(ctx, target, delta)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust stock")
	}
	return stock, nil
}
