package pricing

import "strings"

const (
	// FreeDeliveryThreshold waives the delivery fee entirely once reached.
	FreeDeliveryThreshold int64 = 5000

	Tier1DeliveryFee   int64 = 1200
	Tier2DeliveryFee   int64 = 1500
	DefaultDeliveryFee int64 = 2000
)

var tier1Regions = map[string]struct{}{
	"lagos":       {},
	"lagos state": {},
	"lag":         {},
	"ikeja":       {},
}

var tier2Regions = map[string]struct{}{
	"ogun":      {},
	"oyo":       {},
	"osun":      {},
	"ondo":      {},
	"ekiti":     {},
	"fct":       {},
	"abuja":     {},
	"fct abuja": {},
	"rivers":    {},
	"edo":       {},
	"delta":     {},
}

// NormalizeRegion lower-cases and trims a shipping region for table lookup.
func NormalizeRegion(region string) string {
	return strings.Join(strings.Fields(strings.ToLower(region)), " ")
}

// DeliveryFee returns the fee for a region and subtotal. The free-delivery
// threshold is checked before the tier table.
func DeliveryFee(region string, subtotal int64) int64 {
	if subtotal >= FreeDeliveryThreshold {
		return 0
	}
	key := NormalizeRegion(region)
	if _, ok := tier1Regions[key]; ok {
		return Tier1DeliveryFee
	}
	if _, ok := tier2Regions[key]; ok {
		return Tier2DeliveryFee
	}
	return DefaultDeliveryFee
}
