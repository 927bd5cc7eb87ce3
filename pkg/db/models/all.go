package models

// All lists every persisted model. Used by sqlite auto-migration in local
// development and by tests.
func All() []any {
	return []any{
		&User{},
		&WalletTransaction{},
		&Product{},
		&ProductVariant{},
		&CartItem{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&TrackingEvent{},
		&Notification{},
		&SupportTicket{},
		&TicketMessage{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
