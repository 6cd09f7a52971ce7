package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/query"
)

const (
	couponCols = `c.id, c.code, c.description, c.discount_type, c.discount_value,
		c.min_order_amount, c.max_discount_amount, c.start_date, c.end_date,
		c.is_active, c.is_deleted, c.created_by, c.updated_by, c.created_at, c.updated_at`

	getCouponByCodeSQL = `SELECT ` + couponCols + ` FROM coupons c WHERE c.code = UPPER($1)`

	getCouponByIDSQL = `SELECT ` + couponCols + ` FROM coupons c WHERE c.id = $1`

	createCouponSQL = `INSERT INTO coupons (id, code, description, discount_type, discount_value,
		min_order_amount, max_discount_amount, start_date, end_date, is_active, is_deleted,
		created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	updateCouponSQL = `UPDATE coupons SET description = $2, discount_type = $3, discount_value = $4,
		min_order_amount = $5, max_discount_amount = $6, start_date = $7, end_date = $8,
		is_active = $9, updated_by = $10, updated_at = $11
		WHERE id = $1`

	softDeleteCouponSQL = `UPDATE coupons SET is_active = FALSE, is_deleted = TRUE, updated_by = $2, updated_at = now()
		WHERE id = $1`

	couponListFrom = ` FROM coupons c`
)

var couponListable = listable{
	search: []string{"c.code", "c.description"},
	fields: map[string]column{
		"code":           {expr: "c.code", kind: colText},
		"discountType":   {expr: "c.discount_type", kind: colText},
		"discountValue":  {expr: "c.discount_value", kind: colNumeric},
		"minOrderAmount": {expr: "c.min_order_amount", kind: colNumeric},
		"startDate":      {expr: "c.start_date", kind: colTime},
		"endDate":        {expr: "c.end_date", kind: colTime},
		"isActive":       {expr: "c.is_active", kind: colBool},
		"isDeleted":      {expr: "c.is_deleted", kind: colBool},
		"createdAt":      {expr: "c.created_at", kind: colTime},
	},
	tiebreak: "c.id",
}

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db dbtx
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), including
// inactive and deleted ones.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, getCouponByCodeSQL, code)
}

// FindByID looks up a coupon by its identifier.
func (r *CouponRepository) FindByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.findOne(ctx, getCouponByIDSQL, id)
}

func (r *CouponRepository) findOne(ctx context.Context, sql, key string) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, sql, key)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", key, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", key, err)
	}
	return &c, nil
}

// Create inserts a new coupon. Returns coupon.ErrDuplicateCode when the code
// is taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, createCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscountAmount, c.StartDate, c.EndDate, c.Active, c.Deleted,
		c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update overwrites the mutable fields of a coupon.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.db.Exec(ctx, updateCouponSQL,
		c.ID, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscountAmount, c.StartDate, c.EndDate,
		c.Active, c.UpdatedBy, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// SoftDelete deactivates a coupon and flags it deleted.
func (r *CouponRepository) SoftDelete(ctx context.Context, id, updatedBy string) error {
	tag, err := r.db.Exec(ctx, softDeleteCouponSQL, id, updatedBy)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// List returns coupons matching spec along with the total match count.
func (r *CouponRepository) List(ctx context.Context, spec query.Spec) ([]coupon.Coupon, int, error) {
	q := &listQuery{}
	if err := couponListable.apply(q, spec); err != nil {
		return nil, 0, err
	}
	where := q.whereSQL()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*)`+couponListFrom+where, q.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+couponCols+couponListFrom+where+couponListable.orderBy(q, spec), q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, total, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue,
		&c.MinOrderAmount, &c.MaxDiscountAmount, &c.StartDate, &c.EndDate,
		&c.Active, &c.Deleted, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
