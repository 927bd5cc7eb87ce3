package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// Coupon is a promotional code. UsageLimit 0 means unlimited and LimitPerUser
// 0 disables the per-customer cap.
type Coupon struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code              string           `gorm:"column:code;not null;uniqueIndex"`
	Type              enums.CouponType `gorm:"column:type;type:text;not null"`
	Value             int64            `gorm:"column:value;not null"`
	MinOrderAmount    int64            `gorm:"column:min_order_amount;not null"`
	MaxDiscountAmount *int64           `gorm:"column:max_discount_amount"`
	ExpiryDate        time.Time        `gorm:"column:expiry_date;not null"`
	UsageLimit        int              `gorm:"column:usage_limit;not null"`
	UsageCount        int              `gorm:"column:usage_count;not null"`
	LimitPerUser      int              `gorm:"column:limit_per_user;not null"`
	IsActive          bool             `gorm:"column:is_active;not null"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
