package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product holds the catalog fields the order engine reads. Stock lives on
// the product when it has no variants.
type Product struct {
	ID                      uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name                    string           `gorm:"column:name;not null"`
	SKU                     string           `gorm:"column:sku;not null"`
	Price                   int64            `gorm:"column:price;not null"`
	Stock                   int              `gorm:"column:stock;not null"`
	Image                   *string          `gorm:"column:image"`
	IsActive                bool             `gorm:"column:is_active;not null"`
	WalletDiscountPercent   decimal.Decimal  `gorm:"column:wallet_discount_percent;type:numeric(5,2);not null"`
	WalletDiscountActive    bool             `gorm:"column:wallet_discount_active;not null"`
	WalletDiscountExpiresAt *time.Time       `gorm:"column:wallet_discount_expires_at"`
	Variants                []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt               time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is a purchasable option of a product with its own stock counter.
type ProductVariant struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string            `gorm:"column:sku;not null;uniqueIndex"`
	Price      *int64            `gorm:"column:price"`
	Stock      int               `gorm:"column:stock;not null"`
	Attributes map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductVariant) TableName() string { return "product_variants" }

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
