package enums

// TicketStatus is the support ticket lifecycle.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

var ticketStatuses = newSet("ticket status",
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
)

func (t TicketStatus) String() string { return string(t) }

// IsValid reports whether the value is a known TicketStatus.
func (t TicketStatus) IsValid() bool { return ticketStatuses.has(t) }

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) { return ticketStatuses.parse(value) }
