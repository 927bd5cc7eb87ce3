package tickets

import (
	"time"

	"github.com/naijamart/storefront-backend/pkg/enums"
)

var allowedTransitions = map[enums.TicketStatus][]enums.TicketStatus{
	enums.TicketStatusOpen:       {enums.TicketStatusInProgress, enums.TicketStatusResolved, enums.TicketStatusClosed},
	enums.TicketStatusInProgress: {enums.TicketStatusOpen, enums.TicketStatusResolved, enums.TicketStatusClosed},
	enums.TicketStatusResolved:   {enums.TicketStatusOpen, enums.TicketStatusInProgress, enums.TicketStatusClosed},
	enums.TicketStatusClosed:     {},
}

// CanTransition reports whether a ticket may move from one status to another.
// Closed tickets are final.
func CanTransition(from, to enums.TicketStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusFields returns the column updates that accompany a move to status.
func statusFields(to enums.TicketStatus, now time.Time) map[string]any {
	fields := map[string]any{"status": to}
	switch to {
	case enums.TicketStatusResolved:
		fields["resolved_at"] = now
		fields["closed_at"] = nil
	case enums.TicketStatusClosed:
		fields["closed_at"] = now
	default:
		fields["resolved_at"] = nil
		fields["closed_at"] = nil
	}
	return fields
}
