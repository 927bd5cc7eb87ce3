package enums

// DeliveryStatus drives the fulfillment state machine.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusShipped    DeliveryStatus = "shipped"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

var deliveryStatuses = newSet("delivery status",
	DeliveryStatusPending,
	DeliveryStatusProcessing,
	DeliveryStatusShipped,
	DeliveryStatusDelivered,
	DeliveryStatusCancelled,
)

func (d DeliveryStatus) String() string { return string(d) }

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool { return deliveryStatuses.has(d) }

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) { return deliveryStatuses.parse(value) }
// IsTerminal reports whether no further fulfillment transition is allowed.
func (d DeliveryStatus) IsTerminal() bool {
	switch d {
	case DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	case DeliveryStatusPending, DeliveryStatusProcessing, DeliveryStatusShipped:
		return false
	}
	return false
}
