package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/query"
)

const (
	orderCols = `o.id, o.user_id, o.coupon_id, o.subtotal, o.discount, o.delivery_charge, o.final_amount,
		o.status, o.shipping_address, o.payment_method, o.payment_status, o.created_at, o.updated_at`

	orderListFrom = ` FROM orders o`

	getOrderByIDSQL = `SELECT ` + orderCols + orderListFrom + ` WHERE o.id = $1`

	getOrderItemsSQL = `SELECT order_id, product_id, quantity, unit_price, color
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	insertOrderSQL = `INSERT INTO orders (id, user_id, coupon_id, subtotal, discount, delivery_charge, final_amount,
		status, shipping_address, payment_method, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateOrderStatusSQL = `UPDATE orders o SET status = $2, updated_at = now() WHERE o.id = $1
		RETURNING ` + orderCols

	hasPurchasedSQL = `SELECT EXISTS (
		SELECT 1 FROM orders o JOIN order_items i ON i.order_id = o.id
		WHERE o.user_id = $1 AND i.product_id = $2)`
)

var orderItemColumns = []string{"order_id", "position", "product_id", "quantity", "unit_price", "color"}

var orderListable = listable{
	search: []string{"o.shipping_address", "o.id"},
	fields: map[string]column{
		"status":         {expr: "o.status", kind: colText},
		"paymentMethod":  {expr: "o.payment_method", kind: colText},
		"paymentStatus":  {expr: "o.payment_status", kind: colText},
		"finalAmount":    {expr: "o.final_amount", kind: colNumeric},
		"totalAmount":    {expr: "o.subtotal", kind: colNumeric},
		"discount":       {expr: "o.discount", kind: colNumeric},
		"deliveryCharge": {expr: "o.delivery_charge", kind: colNumeric},
		"createdAt":      {expr: "o.created_at", kind: colTime},
		"updatedAt":      {expr: "o.updated_at", kind: colTime},
	},
	tiebreak: "o.id",
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db dbtx
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// FindByID returns an order with its line items.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns all orders matching spec.
func (r *OrderRepository) List(ctx context.Context, spec query.Spec) ([]order.Order, int, error) {
	return r.list(ctx, &listQuery{}, spec)
}

// ListByUser returns the user's orders matching spec.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, spec query.Spec) ([]order.Order, int, error) {
	q := &listQuery{}
	q.where("o.user_id = " + q.arg(userID))
	return r.list(ctx, q, spec)
}

func (r *OrderRepository) list(ctx context.Context, q *listQuery, spec query.Spec) ([]order.Order, int, error) {
	if err := orderListable.apply(q, spec); err != nil {
		return nil, 0, err
	}
	where := q.whereSQL()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*)`+orderListFrom+where, q.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+orderCols+orderListFrom+where+orderListable.orderBy(q, spec), q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus sets the order status and returns the updated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	rows, err := r.db.Query(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// HasPurchased reports whether any order of the user contains the product.
func (r *OrderRepository) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, hasPurchasedSQL, userID, productID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking purchase of %q by %q: %w", productID, userID, err)
	}
	return ok, nil
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.LineItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Color); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("getting order items: %w", err)
	}
	return nil
}

// insertOrder writes the order row and its items.
func insertOrder(ctx context.Context, db dbtx, o *order.Order) error {
	_, err := db.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.CouponID, o.Subtotal, o.Discount, o.DeliveryCharge, o.FinalAmount,
		string(o.Status), o.ShippingAddress, string(o.PaymentMethod), string(o.PaymentStatus),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}

	items := make([][]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = []any{o.ID, i, it.ProductID, it.Quantity, it.UnitPrice, it.Color}
	}
	if _, err := db.CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns, pgx.CopyFromRows(items)); err != nil {
		return err
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                      order.Order
		status, method, paySts string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CouponID, &o.Subtotal, &o.Discount, &o.DeliveryCharge, &o.FinalAmount,
		&status, &o.ShippingAddress, &method, &paySts, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentMethod = payment.Method(method)
	o.PaymentStatus = payment.Status(paySts)
	return o, err
}
