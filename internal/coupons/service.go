package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/internal/pricing"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

// Service is the coupon authority.
type Service interface {
	Validate(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Validated, *Rejection, error)
	Preview(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Preview, error)
	Claim(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) (bool, error)
	Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
}

type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// NormalizeCode upper-cases and trims a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate runs the checks in a fixed order and stops at the first failure.
// A non-nil error means the checks could not run at all.
func (s *service) Validate(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Validated, *Rejection, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, reject(ReasonNotFound), nil
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	if coupon == nil {
		return nil, reject(ReasonNotFound), nil
	}
	if !coupon.IsActive {
		return nil, reject(ReasonInactive), nil
	}
	if !coupon.ExpiryDate.After(s.now()) {
		return nil, reject(ReasonExpired), nil
	}
	if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
		return nil, reject(ReasonUsageLimitReached), nil
	}
	if coupon.LimitPerUser > 0 {
		used, err := s.repo.CountUserRedemptions(ctx, userID, coupon.Code)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count coupon redemptions")
		}
		if used >= int64(coupon.LimitPerUser) {
			return nil, reject(ReasonUserLimitReached), nil
		}
	}
	if subtotal < coupon.MinOrderAmount {
		return nil, reject(ReasonMinOrderNotMet), nil
	}
	return &Validated{Coupon: *coupon}, nil, nil
}

// Preview validates and reports the discount the coupon would grant on its
// own. Rejections surface as business rule errors carrying the reason.
func (s *service) Preview(ctx context.Context, code string, subtotal int64, userID uuid.UUID) (*Preview, error) {
	if subtotal <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must be positive")
	}
	valid, rejection, err := s.Validate(ctx, code, subtotal, userID)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, rejection.Message).
			WithDetails(map[string]any{"reason": rejection.Reason})
	}
	discount := pricing.CouponDiscount(valid.PricingCoupon(), subtotal)
	if limit := pricing.MaxDiscount(subtotal); discount > limit {
		discount = limit
	}
	return &Preview{
		Code:     valid.Coupon.Code,
		Type:     valid.Coupon.Type,
		Value:    valid.Coupon.Value,
		Discount: discount,
	}, nil
}

// Claim commits one redemption. It returns false when the usage cap was
// reached by a concurrent order after validation.
func (s *service) Claim(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) (bool, error) {
	claimed, err := s.repo.WithTx(tx).IncrementUsage(ctx, couponID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim coupon")
	}
	if !claimed {
		s.logg.Warn(s.logg.WithField(ctx, "coupon_id", couponID.String()), "coupon claim lost to concurrent redemption")
	}
	return claimed, nil
}

// Release undoes a claim for an order that never got paid.
func (s *service) Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	if err := s.repo.WithTx(tx).DecrementUsage(ctx, couponID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release coupon")
	}
	return nil
}
