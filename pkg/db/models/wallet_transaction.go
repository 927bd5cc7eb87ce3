package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// WalletTransaction is an append-only wallet ledger row. Amount is the signed
// delta applied to the balance: credits positive, debits negative.
type WalletTransaction struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Type         enums.WalletTransactionType `gorm:"column:type;type:text;not null" json:"type"`
	Amount       int64                       `gorm:"column:amount;not null" json:"amount"`
	BalanceAfter int64                       `gorm:"column:balance_after;not null" json:"balanceAfter"`
	Reference    string                      `gorm:"column:reference;not null;uniqueIndex:uq_wallet_transactions_reference" json:"reference"`
	OrderID      *uuid.UUID                  `gorm:"column:order_id;type:uuid" json:"orderId,omitempty"`
	Description  string                      `gorm:"column:description;not null" json:"description"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

func (w *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
