package enums

// PaymentMethod identifies how an order is paid. Immutable once an order exists.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodWallet         PaymentMethod = "wallet"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

var paymentMethods = newSet("payment method",
	PaymentMethodCard,
	PaymentMethodBankTransfer,
	PaymentMethodWallet,
	PaymentMethodCashOnDelivery,
)

func (p PaymentMethod) String() string { return string(p) }

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) { return paymentMethods.parse(value) }
// UsesGateway reports whether the method settles through the external gateway.
func (p PaymentMethod) UsesGateway() bool {
	switch p {
	case PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	case PaymentMethodWallet, PaymentMethodCashOnDelivery:
		return false
	}
	return false
}
