package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Price is the resolved charge for one line item.
type Price struct {
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// PriceResolver computes the unit price to charge right now for a product,
// taking a running flash sale into account.
type PriceResolver struct {
	repo Repository
}

// NewPriceResolver creates a PriceResolver backed by the catalog repository.
func NewPriceResolver(repo Repository) *PriceResolver {
	return &PriceResolver{repo: repo}
}

// Resolve looks up the product and its flash sale and prices quantity units.
// The price shown to a shopper earlier may differ if a sale started or ended
// in between; the price resolved here is the one committed.
func (r *PriceResolver) Resolve(ctx context.Context, productID string, quantity int) (Price, error) {
	p, err := r.repo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Price{}, apperr.Newf(apperr.NotFound, "product %s not found", productID)
		}
		return Price{}, errors.Wrapf(err, "get product %s", productID)
	}
	if !p.Active {
		return Price{}, apperr.Newf(apperr.Inactive, "product %s is inactive", p.Name)
	}

	unit := p.Price
	sale, err := r.repo.ActiveFlashSale(ctx, productID)
	if err != nil {
		return Price{}, errors.Wrapf(err, "get flash sale for %s", productID)
	}
	if sale != nil && sale.DiscountPercentage.IsPositive() {
		unit = OfferPrice(p.Price, sale.DiscountPercentage)
	}

	return Price{
		UnitPrice: unit,
		LineTotal: unit.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}
