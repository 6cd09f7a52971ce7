package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/payment"
)

const (
	getPaymentByOrderSQL = `SELECT id, user_id, order_id, method, transaction_id, amount, status, created_at, updated_at
		FROM payments WHERE order_id = $1`

	insertPaymentSQL = `INSERT INTO payments (id, user_id, order_id, method, transaction_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	db dbtx
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: pool}
}

// FindByOrderID returns the payment attached to an order.
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	rows, err := r.db.Query(ctx, getPaymentByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting payment for order %q: %w", orderID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (payment.Payment, error) {
		var (
			p              payment.Payment
			method, status string
		)
		err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &method, &p.TransactionID, &p.Amount, &status,
			&p.CreatedAt, &p.UpdatedAt)
		p.Method = payment.Method(method)
		p.Status = payment.Status(status)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment for order %q: %w", orderID, err)
	}
	return &p, nil
}

func insertPayment(ctx context.Context, db dbtx, p *payment.Payment) error {
	_, err := db.Exec(ctx, insertPaymentSQL,
		p.ID, p.UserID, p.OrderID, string(p.Method), p.TransactionID, p.Amount, string(p.Status),
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}
