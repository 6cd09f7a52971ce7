package checkout

import (
	"context"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Store opens transactions that commit an order and its payment together.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single atomic unit of work. Writes are invisible to other readers
// until Commit succeeds; Rollback discards all of them.
type Tx interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	CreatePayment(ctx context.Context, p *payment.Payment) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
