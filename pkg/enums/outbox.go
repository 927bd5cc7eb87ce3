package enums

// OutboxAggregateType identifies the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateUser   OutboxAggregateType = "user"
	AggregateTicket OutboxAggregateType = "ticket"
)

var aggregateTypes = newSet("aggregate type",
	AggregateOrder,
	AggregateUser,
	AggregateTicket,
)

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) { return aggregateTypes.parse(value) }

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderPlaced         OutboxEventType = "order_placed"
	EventOrderPaid           OutboxEventType = "order_paid"
	EventStockCommitted      OutboxEventType = "stock_committed"
	EventLoyaltyUpdated      OutboxEventType = "loyalty_updated"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderPaymentFailed  OutboxEventType = "order_payment_failed"
	EventTicketStatusChanged OutboxEventType = "ticket_status_changed"
)

var eventTypes = newSet("event type",
	EventOrderPlaced,
	EventOrderPaid,
	EventStockCommitted,
	EventLoyaltyUpdated,
	EventOrderStatusChanged,
	EventOrderPaymentFailed,
	EventTicketStatusChanged,
)

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) { return eventTypes.parse(value) }

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
