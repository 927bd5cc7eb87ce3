// Package loyalty keeps the customer's cumulative spend and derived tier.
package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/db/models"
	"github.com/naijamart/storefront-backend/pkg/enums"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
)

const (
	SilverThreshold int64 = 250_000
	GoldThreshold   int64 = 1_000_000
)

// TierFor derives the tier from lifetime spend. The tier is never stored
// independently of this function.
func TierFor(totalSpent int64) enums.LoyaltyTier {
	switch {
	case totalSpent >= GoldThreshold:
		return enums.LoyaltyTierGold
	case totalSpent >= SilverThreshold:
		return enums.LoyaltyTierSilver
	default:
		return enums.LoyaltyTierBronze
	}
}

// Standing is the result of recording a paid order.
type Standing struct {
	UserID       uuid.UUID         `json:"userId"`
	TotalSpent   int64             `json:"totalSpent"`
	Tier         enums.LoyaltyTier `json:"tier"`
	PreviousTier enums.LoyaltyTier `json:"previousTier"`
	Changed      bool              `json:"changed"`
}

// Recorder updates loyalty standing.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, userID uuid.UUID, orderTotal int64) (*Standing, error)
}

type recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) (Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &recorder{db: db}, nil
}

// Record adds orderTotal to the user's lifetime spend with a single atomic
// increment, then re-reads the total and recomputes the tier.
func (r *recorder) Record(ctx context.Context, tx *gorm.DB, userID uuid.UUID, orderTotal int64) (*Standing, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	conn = conn.WithContext(ctx)

	if orderTotal < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must not be negative")
	}

	res := conn.Model(&models.User{}).
		Where("id = ?", userID).
		Update("total_spent", gorm.Expr("total_spent + ?", orderTotal))
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "increment total spent")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	var user models.User
	if err := conn.Select("id", "total_spent", "loyalty_tier").Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload loyalty standing")
	}

	standing := &Standing{
		UserID:       userID,
		TotalSpent:   user.TotalSpent,
		Tier:         TierFor(user.TotalSpent),
		PreviousTier: user.LoyaltyTier,
	}
	standing.Changed = standing.Tier != standing.PreviousTier
	if standing.Changed {
		if err := conn.Model(&models.User{}).Where("id = ?", userID).Update("loyalty_tier", standing.Tier).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update loyalty tier")
		}
	}
	return standing, nil
}
