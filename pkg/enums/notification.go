package enums

// NotificationType maps to the notifications.type column.
type NotificationType string

const (
	NotificationTypeOrderPlaced      NotificationType = "order_placed"
	NotificationTypePaymentConfirmed NotificationType = "payment_confirmed"
	NotificationTypeOrderStatus      NotificationType = "order_status"
	NotificationTypeLoyalty          NotificationType = "loyalty"
	NotificationTypeTicket           NotificationType = "ticket"
)

var notificationTypes = newSet("notification type",
	NotificationTypeOrderPlaced,
	NotificationTypePaymentConfirmed,
	NotificationTypeOrderStatus,
	NotificationTypeLoyalty,
	NotificationTypeTicket,
)

func (n NotificationType) String() string { return string(n) }

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) { return notificationTypes.parse(value) }
