// Package checkout commits priced orders together with their payment record
// and hands them to payment collection.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/checkout"

// DefaultTxTimeout bounds the persisting phase when Config leaves it unset.
const DefaultTxTimeout = 5 * time.Second

// Config controls checkout transactions.
type Config struct {
	TxTimeout time.Duration
}

// State is the lifecycle phase of a single checkout attempt.
type State int

const (
	Started State = iota
	Assembling
	Persisting
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Assembling:
		return "assembling"
	case Persisting:
		return "persisting"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Assembler prices a cart.
type Assembler interface {
	Assemble(ctx context.Context, cart order.Cart) (*order.Draft, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTracerProvider sets the tracer provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider used for checkout counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) {
		c.meter = mp.Meter(instrumentationName)
	}
}

// Coordinator runs a checkout through Started, Assembling, Persisting and
// finally Committed or Aborted.
type Coordinator struct {
	assembler  Assembler
	store      Store
	dispatcher *Dispatcher
	cfg        Config

	newID    func() string
	newTxnID func() string
	now      func() time.Time

	tracer          trace.Tracer
	meter           metric.Meter
	committed       metric.Int64Counter
	aborted         metric.Int64Counter
	gatewayFailures metric.Int64Counter

	// observe is called on every state change.
	observe func(State)
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(assembler Assembler, store Store, dispatcher *Dispatcher, cfg Config, opts ...Option) (*Coordinator, error) {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultTxTimeout
	}
	c := &Coordinator{
		assembler:  assembler,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		newID:      uuid.NewString,
		newTxnID:   payment.NewTransactionID,
		now:        time.Now,
		tracer:     tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:      metricnoop.NewMeterProvider().Meter(instrumentationName),
		observe:    func(State) {},
	}
	for _, o := range opts {
		o(c)
	}

	var err error
	if c.committed, err = c.meter.Int64Counter("checkout.committed",
		metric.WithDescription("Checkouts whose order and payment were committed")); err != nil {
		return nil, errors.Wrap(err, "create committed counter")
	}
	if c.aborted, err = c.meter.Int64Counter("checkout.aborted",
		metric.WithDescription("Checkouts aborted before commit")); err != nil {
		return nil, errors.Wrap(err, "create aborted counter")
	}
	if c.gatewayFailures, err = c.meter.Int64Counter("checkout.gateway_failures",
		metric.WithDescription("Committed online checkouts whose gateway call failed")); err != nil {
		return nil, errors.Wrap(err, "create gateway failures counter")
	}
	return c, nil
}

// Checkout prices the cart, commits the order and its pending payment in one
// transaction, then dispatches payment. Nothing is written unless both
// records commit. Cancelling ctx has no effect once persisting has begun.
func (c *Coordinator) Checkout(ctx context.Context, id auth.Identity, cart order.Cart) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("user.id", id.UserID),
		attribute.String("payment.method", string(cart.PaymentMethod)),
		attribute.Int("cart.lines", len(cart.Lines)),
	))
	defer span.End()

	ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
	lg := zctx.From(ctx)

	c.transition(ctx, Started)
	if len(cart.Lines) == 0 {
		return nil, c.abort(ctx, span, Started, apperr.New(apperr.EmptyCart, "no products in order"))
	}

	c.transition(ctx, Assembling)
	draft, err := c.assembler.Assemble(ctx, cart)
	if err != nil {
		return nil, c.abort(ctx, span, Assembling, err)
	}
	if err := draft.Verify(); err != nil {
		return nil, c.abort(ctx, span, Assembling, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, c.abort(ctx, span, Assembling, errors.Wrap(err, "checkout cancelled"))
	}

	c.transition(ctx, Persisting)
	o, p, err := c.persist(ctx, id, draft)
	if err != nil {
		return nil, c.abort(ctx, span, Persisting, err)
	}

	c.transition(ctx, Committed)
	c.committed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment.method", string(o.PaymentMethod))))
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("payment.transaction_id", p.TransactionID),
		attribute.String("order.final_amount", o.FinalAmount.StringFixed(2)),
	)
	lg.Info("Order committed",
		zap.String("order_id", o.ID),
		zap.String("transaction_id", p.TransactionID),
		zap.String("final_amount", o.FinalAmount.StringFixed(2)),
	)

	res, err := c.dispatcher.Dispatch(ctx, o, p, payment.Customer{
		Name:    id.Name,
		Email:   id.Email,
		Phone:   id.Phone,
		Address: o.ShippingAddress,
	})
	if err != nil {
		c.gatewayFailures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment dispatch failed")
		return nil, err
	}
	return res, nil
}

// persist writes the order and payment inside one transaction. It runs
// detached from the caller's cancellation but bounded by TxTimeout.
func (c *Coordinator) persist(ctx context.Context, id auth.Identity, draft *order.Draft) (_ *order.Order, _ *payment.Payment, rerr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.TxTimeout)
	defer cancel()

	now := c.now()
	o := draft.Order(c.newID(), id.UserID, now)
	p := &payment.Payment{
		ID:            c.newID(),
		UserID:        id.UserID,
		OrderID:       o.ID,
		Method:        o.PaymentMethod,
		TransactionID: c.newTxnID(),
		Amount:        o.FinalAmount,
		Status:        payment.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, nil, classify(err, "begin transaction")
	}
	defer func() {
		if rerr == nil {
			return
		}
		rbCtx, rbCancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.TxTimeout)
		defer rbCancel()
		if err := tx.Rollback(rbCtx); err != nil {
			zctx.From(ctx).Error("Rollback failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}()

	if err := tx.CreateOrder(ctx, o); err != nil {
		return nil, nil, classify(err, "create order")
	}
	if err := tx.CreatePayment(ctx, p); err != nil {
		return nil, nil, classify(err, "create payment")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, classify(err, "commit")
	}
	return o, p, nil
}

func (c *Coordinator) transition(ctx context.Context, s State) {
	zctx.From(ctx).Debug("Checkout state", zap.Stringer("state", s))
	c.observe(s)
}

func (c *Coordinator) abort(ctx context.Context, span trace.Span, from State, err error) error {
	c.transition(ctx, Aborted)
	kind := apperr.KindOf(err)
	c.aborted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("kind", string(kind)),
	))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))

	lg := zctx.From(ctx).With(zap.Stringer("from", from), zap.String("kind", string(kind)))
	if kind == apperr.Internal {
		lg.Error("Checkout aborted", zap.Error(err))
	} else {
		lg.Info("Checkout aborted", zap.Error(err))
	}
	return err
}

// classify keeps already classified store errors and turns a blown
// transaction deadline into a retryable conflict.
func classify(err error, op string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.TransactionConflict, err, "checkout timed out, please retry")
	}
	return errors.Wrap(err, op)
}
