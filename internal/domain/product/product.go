package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/query"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a read-only snapshot of a catalog item taken at pricing time.
type Product struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// FlashSale is a percentage discount attached to a single product. At most
// one record exists per product; upserts replace the previous one.
type FlashSale struct {
	ProductID          string
	DiscountPercentage decimal.Decimal
	EndsAt             *time.Time
	CreatedBy          string
	UpdatedAt          time.Time
}

// Listing pairs a product with its flash sale for catalog display.
type Listing struct {
	Product   Product
	FlashSale FlashSale
}

// Repository defines catalog reads and flash sale writes.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// ActiveFlashSale returns nil without error when the product has no
	// running flash sale.
	ActiveFlashSale(ctx context.Context, productID string) (*FlashSale, error)
	UpsertFlashSales(ctx context.Context, sales []FlashSale) error
	ListFlashSales(ctx context.Context, spec query.Spec) ([]Listing, int, error)
}

var hundred = decimal.NewFromInt(100)

// OfferPrice applies a flash sale percentage to a base price.
func OfferPrice(base, pct decimal.Decimal) decimal.Decimal {
	if !pct.IsPositive() {
		return base
	}
	return base.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred))).Round(2)
}
