package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Discount is the result of resolving a coupon against a subtotal.
type Discount struct {
	Amount   decimal.Decimal
	CouponID *string
	Coupon   *Coupon
}

// Resolver validates a coupon code and computes its discount. It never
// mutates the coupon.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Resolve returns a zero discount for an empty code.
func (r *Resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Discount{Amount: decimal.Zero}, nil
	}

	c, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Discount{}, apperr.Newf(apperr.NotFound, "coupon %s not found", code)
		}
		return Discount{}, errors.Wrap(err, "lookup coupon")
	}

	now := r.now()
	switch {
	case !c.Active || c.Deleted:
		return Discount{}, apperr.New(apperr.Invalid, "coupon is inactive")
	case now.Before(c.StartDate):
		return Discount{}, apperr.New(apperr.Invalid, "coupon has not started")
	case now.After(c.EndDate):
		return Discount{}, apperr.New(apperr.Invalid, "coupon has expired")
	}

	if c.MinOrderAmount != nil && subtotal.LessThan(*c.MinOrderAmount) {
		return Discount{}, apperr.Newf(apperr.BelowMinimum,
			"order amount is below the minimum of %s required by coupon", c.MinOrderAmount.StringFixed(2))
	}

	id := c.ID
	return Discount{
		Amount:   Amount(c, subtotal),
		CouponID: &id,
		Coupon:   c,
	}, nil
}
