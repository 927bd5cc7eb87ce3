package coupons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type stubRepo struct {
	coupon      *models.Coupon
	findErr     error
	userCount   int64
	countCalled bool
	incrementFn func(id uuid.UUID) (bool, error)
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }
func (s *stubRepo) Create(context.Context, *models.Coupon) error { return nil }
func (s *stubRepo) DecrementUsage(context.Context, uuid.UUID) error { return nil }
func (s *stubRepo) FindByID(context.Context, uuid.UUID) (*models.Coupon, error) {
	return s.coupon, nil
}

func (s *stubRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.coupon == nil || s.coupon.Code != code {
		return nil, nil
	}
	return s.coupon, nil
}

func (s *stubRepo) CountUserRedemptions(context.Context, uuid.UUID, string) (int64, error) {
	s.countCalled = true
	return s.userCount, nil
}

func (s *stubRepo) IncrementUsage(_ context.Context, id uuid.UUID) (bool, error) {
	if s.incrementFn != nil {
		return s.incrementFn(id)
	}
	return true, nil
}

func baseCoupon() *models.Coupon {
	return &models.Coupon{
		ID:             uuid.New(),
		Code:           "WELCOME10",
		Type:           enums.CouponTypePercentage,
		Value:          10,
		MinOrderAmount: 2000,
		ExpiryDate:     fixedNow.Add(48 * time.Hour),
		UsageLimit:     5,
		UsageCount:     1,
		LimitPerUser:   1,
		IsActive:       true,
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "coupons-test"}),
		Now:    func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestValidateChecksInOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *models.Coupon, r *stubRepo)
		code   string
		sub    int64
		want   RejectionReason
	}{
		{name: "unknown code", code: "NOPE", sub: 5000, want: ReasonNotFound},
		{name: "inactive beats expired", mutate: func(c *models.Coupon, _ *stubRepo) {
			c.IsActive = false
			c.ExpiryDate = fixedNow.Add(-time.Hour)
		}, sub: 5000, want: ReasonInactive},
		{name: "expired", mutate: func(c *models.Coupon, _ *stubRepo) { c.ExpiryDate = fixedNow }, sub: 5000, want: ReasonExpired},
		{name: "global cap", mutate: func(c *models.Coupon, _ *stubRepo) { c.UsageCount = 5 }, sub: 5000, want: ReasonUsageLimitReached},
		{name: "per user cap", mutate: func(_ *models.Coupon, r *stubRepo) { r.userCount = 1 }, sub: 5000, want: ReasonUserLimitReached},
		{name: "minimum order", sub: 1999, want: ReasonMinOrderNotMet},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coupon := baseCoupon()
			repo := &stubRepo{coupon: coupon}
			if tc.mutate != nil {
				tc.mutate(coupon, repo)
			}
			code := tc.code
			if code == "" {
				code = " welcome10 "
			}
			valid, rejection, err := newTestService(t, repo).Validate(context.Background(), code, tc.sub, uuid.New())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if valid != nil {
				t.Fatalf("expected rejection, got valid coupon")
			}
			if rejection == nil || rejection.Reason != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, rejection)
			}
			if rejection.Message == "" {
				t.Fatalf("expected rejection message")
			}
		})
	}
}

func TestValidateUnlimitedCouponSkipsCaps(t *testing.T) {
	coupon := baseCoupon()
	coupon.UsageLimit = 0
	coupon.UsageCount = 10000
	coupon.LimitPerUser = 0
	repo := &stubRepo{coupon: coupon}

	valid, rejection, err := newTestService(t, repo).Validate(context.Background(), "WELCOME10", 2000, uuid.New())
	if err != nil || rejection != nil {
		t.Fatalf("expected valid coupon, got rejection=%+v err=%v", rejection, err)
	}
	if valid.Coupon.Code != "WELCOME10" {
		t.Fatalf("unexpected coupon %s", valid.Coupon.Code)
	}
	if repo.countCalled {
		t.Fatalf("per-user count must not run when limit is 0")
	}
}

func TestValidateSurfacesRepositoryErrors(t *testing.T) {
	repo := &stubRepo{findErr: errors.New("db down")}
	_, _, err := newTestService(t, repo).Validate(context.Background(), "X", 100, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestPreviewReportsReasonAndDiscount(t *testing.T) {
	coupon := baseCoupon()
	max := int64(300)
	coupon.MaxDiscountAmount = &max
	repo := &stubRepo{coupon: coupon}
	svc := newTestService(t, repo)

	preview, err := svc.Preview(context.Background(), "welcome10", 10000, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.Discount != 300 {
		t.Fatalf("expected discount clamped to 300, got %d", preview.Discount)
	}

	_, err = svc.Preview(context.Background(), "welcome10", 1000, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeBusinessRule {
		t.Fatalf("expected business rule error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["reason"] != ReasonMinOrderNotMet {
		t.Fatalf("expected min order reason, got %#v", typed.Details())
	}
}

func TestClaimReportsLostRace(t *testing.T) {
	repo := &stubRepo{incrementFn: func(uuid.UUID) (bool, error) { return false, nil }}
	claimed, err := newTestService(t, repo).Claim(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatalf("expected claim to be lost")
	}
}
