package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/query"
)

const (
	getProductByIDSQL = `SELECT id, name, price, is_active FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, is_active FROM products WHERE id = ANY($1)`

	activeFlashSaleSQL = `SELECT product_id, discount_percentage, ends_at, created_by, updated_at
		FROM flash_sales
		WHERE product_id = $1 AND (ends_at IS NULL OR ends_at > now())`

	upsertFlashSaleSQL = `INSERT INTO flash_sales (product_id, discount_percentage, ends_at, created_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			discount_percentage = EXCLUDED.discount_percentage,
			ends_at = EXCLUDED.ends_at,
			created_by = EXCLUDED.created_by,
			updated_at = EXCLUDED.updated_at`

	upsertProductSQL = `INSERT INTO products (id, name, price, is_active) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, is_active = EXCLUDED.is_active`

	flashSaleListFrom = ` FROM flash_sales f JOIN products p ON p.id = f.product_id`

	flashSaleListCols = `SELECT p.id, p.name, p.price, p.is_active,
		f.product_id, f.discount_percentage, f.ends_at, f.created_by, f.updated_at`

	activeFlashSaleCond = `p.is_active AND (f.ends_at IS NULL OR f.ends_at > now())`
)

var flashSaleListable = listable{
	search: []string{"p.name"},
	fields: map[string]column{
		"name":               {expr: "p.name", kind: colText},
		"price":              {expr: "p.price", kind: colNumeric},
		"discountPercentage": {expr: "f.discount_percentage", kind: colNumeric},
		"createdAt":          {expr: "f.created_at", kind: colTime},
		"updatedAt":          {expr: "f.updated_at", kind: colTime},
	},
	tiebreak: "p.id",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db dbtx
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ActiveFlashSale returns the running flash sale for a product, or nil.
func (r *ProductRepository) ActiveFlashSale(ctx context.Context, productID string) (*product.FlashSale, error) {
	rows, err := r.db.Query(ctx, activeFlashSaleSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("getting flash sale for %q: %w", productID, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanFlashSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting flash sale for %q: %w", productID, err)
	}
	return &s, nil
}

// UpsertFlashSales writes all sales in one batch. A product keeps at most one
// flash sale; the newest write wins.
func (r *ProductRepository) UpsertFlashSales(ctx context.Context, sales []product.FlashSale) error {
	batch := &pgx.Batch{}
	for _, s := range sales {
		batch.Queue(upsertFlashSaleSQL, s.ProductID, s.DiscountPercentage, s.EndsAt, s.CreatedBy, s.UpdatedAt)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting flash sales: %w", err)
	}
	return nil
}

// UpsertProducts creates or replaces catalog entries. It is used by seeding
// tools; the checkout path never writes products.
func (r *ProductRepository) UpsertProducts(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL, p.ID, p.Name, p.Price, p.Active)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting products: %w", err)
	}
	return nil
}

// ListFlashSales returns active products on a running flash sale.
func (r *ProductRepository) ListFlashSales(ctx context.Context, spec query.Spec) ([]product.Listing, int, error) {
	q := &listQuery{}
	q.where(activeFlashSaleCond)
	if err := flashSaleListable.apply(q, spec); err != nil {
		return nil, 0, err
	}
	where := q.whereSQL()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*)`+flashSaleListFrom+where, q.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting flash sales: %w", err)
	}

	sql := flashSaleListCols + flashSaleListFrom + where + flashSaleListable.orderBy(q, spec)
	rows, err := r.db.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing flash sales: %w", err)
	}
	listings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Listing, error) {
		var l product.Listing
		err := row.Scan(
			&l.Product.ID, &l.Product.Name, &l.Product.Price, &l.Product.Active,
			&l.FlashSale.ProductID, &l.FlashSale.DiscountPercentage, &l.FlashSale.EndsAt,
			&l.FlashSale.CreatedBy, &l.FlashSale.UpdatedAt,
		)
		return l, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing flash sales: %w", err)
	}
	return listings, total, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Active)
	return p, err
}

func scanFlashSale(row pgx.CollectableRow) (product.FlashSale, error) {
	var s product.FlashSale
	err := row.Scan(&s.ProductID, &s.DiscountPercentage, &s.EndsAt, &s.CreatedBy, &s.UpdatedAt)
	return s, err
}
