package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/query"
)

// CreateFlashSaleRequest puts a set of products on sale at one percentage.
type CreateFlashSaleRequest struct {
	ProductIDs         []string
	DiscountPercentage decimal.Decimal
	EndsAt             *time.Time
}

// Offer is a product on sale together with its discounted price.
type Offer struct {
	Product            Product
	DiscountPercentage decimal.Decimal
	OfferPrice         decimal.Decimal
}

// FlashSaleService manages flash sales.
type FlashSaleService struct {
	repo Repository
	now  func() time.Time
}

// NewFlashSaleService creates a FlashSaleService.
func NewFlashSaleService(repo Repository) *FlashSaleService {
	return &FlashSaleService{repo: repo, now: time.Now}
}

// Create upserts a flash sale for every requested product. Existing sales on
// those products are replaced.
func (s *FlashSaleService) Create(ctx context.Context, id auth.Identity, req CreateFlashSaleRequest) error {
	if !id.IsAdmin() {
		return apperr.New(apperr.Forbidden, "only admins can create flash sales")
	}
	if len(req.ProductIDs) == 0 {
		return apperr.New(apperr.Invalid, "at least one product is required")
	}
	if !req.DiscountPercentage.IsPositive() || req.DiscountPercentage.GreaterThan(hundred) {
		return apperr.New(apperr.Invalid, "discount percentage must be between 0 and 100")
	}

	ids := dedupe(req.ProductIDs)
	found, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	active := 0
	for _, p := range found {
		if p.Active {
			active++
		}
	}
	if active != len(ids) {
		return apperr.New(apperr.Invalid, "some products are invalid or inactive")
	}

	now := s.now()
	sales := make([]FlashSale, len(ids))
	for i, pid := range ids {
		sales[i] = FlashSale{
			ProductID:          pid,
			DiscountPercentage: req.DiscountPercentage,
			EndsAt:             req.EndsAt,
			CreatedBy:          id.UserID,
			UpdatedAt:          now,
		}
	}
	if err := s.repo.UpsertFlashSales(ctx, sales); err != nil {
		return errors.Wrap(err, "upsert flash sales")
	}
	return nil
}

// ListActive returns products currently on sale with their offer prices.
func (s *FlashSaleService) ListActive(ctx context.Context, spec query.Spec) ([]Offer, query.Page, error) {
	spec = spec.Normalize()
	listings, total, err := s.repo.ListFlashSales(ctx, spec)
	if err != nil {
		return nil, query.Page{}, errors.Wrap(err, "list flash sales")
	}

	offers := make([]Offer, len(listings))
	for i, l := range listings {
		offers[i] = Offer{
			Product:            l.Product,
			DiscountPercentage: l.FlashSale.DiscountPercentage,
			OfferPrice:         OfferPrice(l.Product.Price, l.FlashSale.DiscountPercentage),
		}
	}
	return offers, query.NewPage(spec, total), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
