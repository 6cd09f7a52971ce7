package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore opens serializable transactions for checkout.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// Begin starts a serializable read-write transaction.
func (s *CheckoutStore) Begin(ctx context.Context) (checkout.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, classify(err, "begin checkout transaction")
	}
	return &checkoutTx{tx: tx}, nil
}

type checkoutTx struct {
	tx pgx.Tx
}

func (t *checkoutTx) CreateOrder(ctx context.Context, o *order.Order) error {
	if err := insertOrder(ctx, t.tx, o); err != nil {
		return classify(err, "insert order")
	}
	return nil
}

func (t *checkoutTx) CreatePayment(ctx context.Context, p *payment.Payment) error {
	if err := insertPayment(ctx, t.tx, p); err != nil {
		return classify(err, "insert payment")
	}
	return nil
}

func (t *checkoutTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classify(err, "commit checkout")
	}
	return nil
}

// Rollback is a no-op after a successful Commit.
func (t *checkoutTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return classify(err, "rollback checkout")
	}
	return nil
}
