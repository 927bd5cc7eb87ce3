package enums

// CouponType selects how a coupon value is interpreted.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

var couponTypes = newSet("coupon type",
	CouponTypePercentage,
	CouponTypeFixed,
)

func (c CouponType) String() string { return string(c) }

func (c CouponType) IsValid() bool { return couponTypes.has(c) }

func ParseCouponType(value string) (CouponType, error) { return couponTypes.parse(value) }
