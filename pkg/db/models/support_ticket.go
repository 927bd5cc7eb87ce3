package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// SupportTicket is a customer support thread header.
type SupportTicket struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	OrderID    *uuid.UUID         `gorm:"column:order_id;type:uuid" json:"orderId,omitempty"`
	Subject    string             `gorm:"column:subject;not null" json:"subject"`
	Message    string             `gorm:"column:message;not null" json:"message"`
	Status     enums.TicketStatus `gorm:"column:status;type:text;not null;index" json:"status"`
	AdminNote  *string            `gorm:"column:admin_note" json:"adminNote,omitempty"`
	ResolvedAt *time.Time         `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	ClosedAt   *time.Time         `gorm:"column:closed_at" json:"closedAt,omitempty"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (SupportTicket) TableName() string { return "support_tickets" }

func (t *SupportTicket) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	if t.Status == "" {
		t.Status = enums.TicketStatusOpen
	}
	return nil
}
