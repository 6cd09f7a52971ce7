package product

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/query"
)

// --- Mock implementations ---

type mockRepo struct {
	byID     map[string]*Product
	sales    map[string]*FlashSale
	getErr   error
	saleErr  error
	upserted []FlashSale
	listings []Listing
}

func newMockRepo(products ...Product) *mockRepo {
	byID := make(map[string]*Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockRepo{byID: byID, sales: map[string]*FlashSale{}}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	var out []Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) ActiveFlashSale(_ context.Context, productID string) (*FlashSale, error) {
	if m.saleErr != nil {
		return nil, m.saleErr
	}
	return m.sales[productID], nil
}

func (m *mockRepo) UpsertFlashSales(_ context.Context, sales []FlashSale) error {
	m.upserted = append(m.upserted, sales...)
	for i := range sales {
		m.sales[sales[i].ProductID] = &sales[i]
	}
	return nil
}

func (m *mockRepo) ListFlashSales(_ context.Context, _ query.Spec) ([]Listing, int, error) {
	return m.listings, len(m.listings), nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- Pricing ---

func TestPriceResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		sale     *FlashSale
		qty      int
		wantUnit decimal.Decimal
		wantLine decimal.Decimal
	}{
		{
			name:     "base price without flash sale",
			qty:      2,
			wantUnit: d("1000"),
			wantLine: d("2000"),
		},
		{
			name:     "flash sale 10 percent",
			sale:     &FlashSale{ProductID: "p1", DiscountPercentage: d("10")},
			qty:      2,
			wantUnit: d("900"),
			wantLine: d("1800"),
		},
		{
			name:     "zero percent flash sale is ignored",
			sale:     &FlashSale{ProductID: "p1", DiscountPercentage: decimal.Zero},
			qty:      1,
			wantUnit: d("1000"),
			wantLine: d("1000"),
		},
		{
			name:     "fractional percentage rounds unit to cents",
			sale:     &FlashSale{ProductID: "p1", DiscountPercentage: d("33.333")},
			qty:      3,
			wantUnit: d("666.67"),
			wantLine: d("2000.01"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(Product{ID: "p1", Name: "Kettle", Price: d("1000"), Active: true})
			if tt.sale != nil {
				repo.sales["p1"] = tt.sale
			}

			got, err := NewPriceResolver(repo).Resolve(context.Background(), "p1", tt.qty)
			require.NoError(t, err)
			assert.True(t, tt.wantUnit.Equal(got.UnitPrice), "unit: want %s, got %s", tt.wantUnit, got.UnitPrice)
			assert.True(t, tt.wantLine.Equal(got.LineTotal), "line: want %s, got %s", tt.wantLine, got.LineTotal)
		})
	}
}

func TestPriceResolver_NotFound(t *testing.T) {
	_, err := NewPriceResolver(newMockRepo()).Resolve(context.Background(), "missing", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestPriceResolver_Inactive(t *testing.T) {
	repo := newMockRepo(Product{ID: "p1", Name: "Kettle", Price: d("10"), Active: false})

	_, err := NewPriceResolver(repo).Resolve(context.Background(), "p1", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.Inactive, apperr.KindOf(err))
}

func TestPriceResolver_RepoError(t *testing.T) {
	repo := newMockRepo(Product{ID: "p1", Price: d("10"), Active: true})
	repo.saleErr = errors.New("db down")

	_, err := NewPriceResolver(repo).Resolve(context.Background(), "p1", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "get flash sale")
}

// --- Flash sales ---

var admin = auth.Identity{UserID: "u-admin", Role: auth.RoleAdmin}

func TestFlashSaleService_Create(t *testing.T) {
	repo := newMockRepo(
		Product{ID: "p1", Price: d("100"), Active: true},
		Product{ID: "p2", Price: d("50"), Active: true},
	)
	svc := NewFlashSaleService(repo)
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	err := svc.Create(context.Background(), admin, CreateFlashSaleRequest{
		ProductIDs:         []string{"p1", "p2", "p1"},
		DiscountPercentage: d("15"),
	})
	require.NoError(t, err)
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, "u-admin", repo.upserted[0].CreatedBy)
	assert.Equal(t, fixed, repo.upserted[1].UpdatedAt)
}

func TestFlashSaleService_CreateLastWriteWins(t *testing.T) {
	repo := newMockRepo(Product{ID: "p1", Price: d("100"), Active: true})
	svc := NewFlashSaleService(repo)

	for _, pct := range []string{"10", "25"} {
		require.NoError(t, svc.Create(context.Background(), admin, CreateFlashSaleRequest{
			ProductIDs:         []string{"p1"},
			DiscountPercentage: d(pct),
		}))
	}

	price, err := NewPriceResolver(repo).Resolve(context.Background(), "p1", 1)
	require.NoError(t, err)
	assert.True(t, d("75").Equal(price.UnitPrice))
}

func TestFlashSaleService_CreateRejections(t *testing.T) {
	repo := newMockRepo(
		Product{ID: "p1", Price: d("100"), Active: true},
		Product{ID: "off", Price: d("100"), Active: false},
	)
	svc := NewFlashSaleService(repo)

	tests := []struct {
		name     string
		id       auth.Identity
		req      CreateFlashSaleRequest
		wantKind apperr.Kind
	}{
		{
			name:     "non admin",
			id:       auth.Identity{UserID: "u1", Role: auth.RoleUser},
			req:      CreateFlashSaleRequest{ProductIDs: []string{"p1"}, DiscountPercentage: d("10")},
			wantKind: apperr.Forbidden,
		},
		{
			name:     "no products",
			id:       admin,
			req:      CreateFlashSaleRequest{DiscountPercentage: d("10")},
			wantKind: apperr.Invalid,
		},
		{
			name:     "percentage over 100",
			id:       admin,
			req:      CreateFlashSaleRequest{ProductIDs: []string{"p1"}, DiscountPercentage: d("120")},
			wantKind: apperr.Invalid,
		},
		{
			name:     "inactive product",
			id:       admin,
			req:      CreateFlashSaleRequest{ProductIDs: []string{"p1", "off"}, DiscountPercentage: d("10")},
			wantKind: apperr.Invalid,
		},
		{
			name:     "unknown product",
			id:       admin,
			req:      CreateFlashSaleRequest{ProductIDs: []string{"ghost"}, DiscountPercentage: d("10")},
			wantKind: apperr.Invalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.id, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
	assert.Empty(t, repo.upserted)
}

func TestFlashSaleService_ListActive(t *testing.T) {
	repo := newMockRepo()
	repo.listings = []Listing{
		{
			Product:   Product{ID: "p1", Name: "Kettle", Price: d("1000"), Active: true},
			FlashSale: FlashSale{ProductID: "p1", DiscountPercentage: d("10")},
		},
	}

	offers, page, err := NewFlashSaleService(repo).ListActive(context.Background(), query.Spec{})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.True(t, d("900").Equal(offers[0].OfferPrice))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPage)
}
