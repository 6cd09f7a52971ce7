package coupon

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Amount computes the discount the coupon grants on subtotal. It does not
// check eligibility.
func Amount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case Percentage:
		return applyPercentage(c, subtotal)
	case Flat:
		return applyFlat(c, subtotal)
	default:
		return decimal.Zero
	}
}

func applyPercentage(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(c.DiscountValue).Div(hundred)
	if c.MaxDiscountAmount != nil {
		amount = decimal.Min(amount, *c.MaxDiscountAmount)
	}
	return floorAtZero(amount).Round(2)
}

func applyFlat(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	return floorAtZero(decimal.Min(c.DiscountValue, subtotal)).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
