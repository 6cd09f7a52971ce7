package checkout

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Result is returned to the client after a successful checkout.
type Result struct {
	OrderID    string
	PaymentURL string
	Order      *order.Order
	Payment    *payment.Payment
}

// Dispatcher starts payment collection for a committed order.
type Dispatcher struct {
	gateway payment.Gateway
}

// NewDispatcher creates a Dispatcher. A nil gateway makes every online
// checkout fail with GatewayUnavailable.
func NewDispatcher(gateway payment.Gateway) *Dispatcher {
	return &Dispatcher{gateway: gateway}
}

// Dispatch returns the order id for cash on delivery, or asks the gateway for
// a redirect URL for online payment. A gateway failure leaves the committed
// order and payment pending.
func (d *Dispatcher) Dispatch(ctx context.Context, o *order.Order, p *payment.Payment, customer payment.Customer) (*Result, error) {
	res := &Result{OrderID: o.ID, Order: o, Payment: p}
	if o.PaymentMethod != payment.Online {
		return res, nil
	}
	if d.gateway == nil {
		return nil, apperr.Newf(apperr.GatewayUnavailable,
			"online payment is not configured, order %s is pending", o.ID)
	}

	url, err := d.gateway.Initiate(ctx, payment.InitRequest{
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
		OrderID:       o.ID,
		Customer:      customer,
	})
	if err != nil {
		zctx.From(ctx).Warn("Payment gateway failed",
			zap.String("order_id", o.ID),
			zap.String("transaction_id", p.TransactionID),
			zap.Error(err),
		)
		return nil, apperr.Wrap(apperr.GatewayUnavailable, err,
			"payment gateway unavailable, order "+o.ID+" is pending")
	}
	res.PaymentURL = url
	return res, nil
}
