package enums

// LoyaltyTier is derived from a customer's lifetime spend.
type LoyaltyTier string

const (
	LoyaltyTierBronze LoyaltyTier = "bronze"
	LoyaltyTierSilver LoyaltyTier = "silver"
	LoyaltyTierGold   LoyaltyTier = "gold"
)

var loyaltyTiers = newSet("loyalty tier",
	LoyaltyTierBronze,
	LoyaltyTierSilver,
	LoyaltyTierGold,
)

func (l LoyaltyTier) String() string { return string(l) }

func (l LoyaltyTier) IsValid() bool { return loyaltyTiers.has(l) }

func ParseLoyaltyTier(value string) (LoyaltyTier, error) { return loyaltyTiers.parse(value) }
