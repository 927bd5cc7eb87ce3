package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

// TicketMessage is one reply in a support ticket thread.
type TicketMessage struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TicketID   uuid.UUID      `gorm:"column:ticket_id;type:uuid;not null;index" json:"ticketId"`
	AuthorID   uuid.UUID      `gorm:"column:author_id;type:uuid;not null" json:"authorId"`
	AuthorRole enums.UserRole `gorm:"column:author_role;type:text;not null" json:"authorRole"`
	Body       string         `gorm:"column:body;not null" json:"body"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (TicketMessage) TableName() string { return "ticket_messages" }

func (m *TicketMessage) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
