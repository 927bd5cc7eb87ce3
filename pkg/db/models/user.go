package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// User carries the wallet balance and loyalty standing consumed by checkout.
type User struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email         string            `gorm:"column:email;not null;uniqueIndex"`
	FirstName     string            `gorm:"column:first_name;not null"`
	LastName      string            `gorm:"column:last_name;not null"`
	Phone         *string           `gorm:"column:phone"`
	Role          enums.UserRole    `gorm:"column:role;type:text;not null"`
	WalletBalance int64             `gorm:"column:wallet_balance;not null"`
	TotalSpent    int64             `gorm:"column:total_spent;not null"`
	LoyaltyTier   enums.LoyaltyTier `gorm:"column:loyalty_tier;type:text;not null"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	if u.Role == "" {
		u.Role = enums.UserRoleCustomer
	}
	if u.LoyaltyTier == "" {
		u.LoyaltyTier = enums.LoyaltyTierBronze
	}
	return nil
}

// FullName joins first and last name for notification copy.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
