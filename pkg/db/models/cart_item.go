package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is owned by the cart feature; checkout reads it once and clears it.
type CartItem struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID       uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID        `gorm:"column:variant_id;type:uuid"`
	Quantity        int               `gorm:"column:quantity;not null"`
	SelectedOptions map[string]string `gorm:"column:selected_options;type:jsonb;serializer:json"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
