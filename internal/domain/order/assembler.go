package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
)

// CartLine is a requested product line as sent by the client.
type CartLine struct {
	ProductID string
	Quantity  int
	Color     string
}

// Cart is the checkout payload. Prices are never taken from it.
type Cart struct {
	Lines           []CartLine
	CouponCode      string
	ShippingAddress string
	PaymentMethod   payment.Method
}

// MaxQuantity is the largest quantity accepted on a single cart line.
const MaxQuantity = 10_000

// MaxAmount is the largest money amount an order can carry. It matches the
// NUMERIC(12,2) columns money is stored in.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Draft is a fully priced order that has not been persisted.
type Draft struct {
	Items           []LineItem
	CouponID        *string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	DeliveryCharge  decimal.Decimal
	FinalAmount     decimal.Decimal
	ShippingAddress string
	PaymentMethod   payment.Method
}

// Verify checks that FinalAmount equals Subtotal - Discount + DeliveryCharge,
// clamped at zero.
func (d *Draft) Verify() error {
	want := finalAmount(d.Subtotal, d.Discount, d.DeliveryCharge)
	if !want.Equal(d.FinalAmount) {
		return apperr.Newf(apperr.Internal, "final amount %s does not match computed %s",
			d.FinalAmount.StringFixed(2), want.StringFixed(2))
	}
	return nil
}

// Order materializes the draft as a pending order owned by userID.
func (d *Draft) Order(id, userID string, now time.Time) *Order {
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)
	return &Order{
		ID:              id,
		UserID:          userID,
		Items:           items,
		CouponID:        d.CouponID,
		Subtotal:        d.Subtotal,
		Discount:        d.Discount,
		DeliveryCharge:  d.DeliveryCharge,
		FinalAmount:     d.FinalAmount,
		Status:          StatusPending,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.PaymentMethod,
		PaymentStatus:   payment.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Pricer resolves the current unit price of a product.
type Pricer interface {
	Resolve(ctx context.Context, productID string, quantity int) (product.Price, error)
}

// Discounter resolves a coupon code against a subtotal.
type Discounter interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Discount, error)
}

// DeliveryPricer maps an address to a delivery charge.
type DeliveryPricer interface {
	Charge(address string) decimal.Decimal
}

// Assembler turns a cart into a priced Draft.
type Assembler struct {
	prices   Pricer
	coupons  Discounter
	delivery DeliveryPricer
}

// NewAssembler creates an Assembler with the required pricing collaborators.
func NewAssembler(prices Pricer, coupons Discounter, delivery DeliveryPricer) *Assembler {
	return &Assembler{
		prices:   prices,
		coupons:  coupons,
		delivery: delivery,
	}
}

// Assemble validates the cart, prices every line at the current price, applies
// the coupon and delivery charge, and computes the final amount. The first
// failing line aborts assembly.
func (a *Assembler) Assemble(ctx context.Context, cart Cart) (*Draft, error) {
	if len(cart.Lines) == 0 {
		return nil, apperr.New(apperr.EmptyCart, "no products in order")
	}
	if !cart.PaymentMethod.Valid() {
		return nil, apperr.New(apperr.Invalid, "payment method must be either COD or Online")
	}
	address := strings.TrimSpace(cart.ShippingAddress)
	if address == "" {
		return nil, apperr.New(apperr.Invalid, "shipping address is required")
	}

	items := make([]LineItem, len(cart.Lines))
	subtotal := decimal.Zero
	for i, line := range cart.Lines {
		if line.Quantity < 1 {
			return nil, apperr.Newf(apperr.Invalid, "quantity must be at least 1 for product %s", line.ProductID)
		}
		if line.Quantity > MaxQuantity {
			return nil, apperr.Newf(apperr.Invalid, "quantity must not exceed %d for product %s", MaxQuantity, line.ProductID)
		}
		if strings.TrimSpace(line.Color) == "" {
			return nil, apperr.Newf(apperr.Invalid, "color is required for product %s", line.ProductID)
		}

		price, err := a.prices.Resolve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		items[i] = LineItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: price.UnitPrice,
			Color:     line.Color,
		}
		subtotal = subtotal.Add(price.LineTotal)
	}
	subtotal = subtotal.Round(2)
	if subtotal.GreaterThan(MaxAmount) {
		return nil, apperr.Newf(apperr.Invalid, "order total %s exceeds the maximum of %s",
			subtotal.StringFixed(2), MaxAmount.StringFixed(2))
	}

	discount, err := a.coupons.Resolve(ctx, cart.CouponCode, subtotal)
	if err != nil {
		return nil, err
	}
	charge := a.delivery.Charge(address).Round(2)
	amount := discount.Amount.Round(2)
	final := finalAmount(subtotal, amount, charge)
	if final.GreaterThan(MaxAmount) {
		return nil, apperr.Newf(apperr.Invalid, "order total %s exceeds the maximum of %s",
			final.StringFixed(2), MaxAmount.StringFixed(2))
	}

	return &Draft{
		Items:           items,
		CouponID:        discount.CouponID,
		Subtotal:        subtotal,
		Discount:        amount,
		DeliveryCharge:  charge,
		FinalAmount:     final,
		ShippingAddress: address,
		PaymentMethod:   cart.PaymentMethod,
	}, nil
}

func finalAmount(subtotal, discount, delivery decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Add(delivery)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}
