package checkout

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
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/query"
)

// --- In-memory collaborators ---

type memCatalog struct {
	products map[string]product.Product
	sales    map[string]product.FlashSale
}

func (m *memCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) GetByIDs(context.Context, []string) ([]product.Product, error) { return nil, nil }

func (m *memCatalog) ActiveFlashSale(_ context.Context, id string) (*product.FlashSale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memCatalog) UpsertFlashSales(context.Context, []product.FlashSale) error { return nil }

func (m *memCatalog) ListFlashSales(context.Context, query.Spec) ([]product.Listing, int, error) {
	return nil, 0, nil
}

type memCoupons struct {
	byCode map[string]coupon.Coupon
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (m *memCoupons) FindByID(context.Context, string) (*coupon.Coupon, error) {
	return nil, coupon.ErrNotFound
}
func (m *memCoupons) Create(context.Context, *coupon.Coupon) error { return nil }
func (m *memCoupons) Update(context.Context, *coupon.Coupon) error { return nil }
func (m *memCoupons) SoftDelete(context.Context, string, string) error { return nil }
func (m *memCoupons) List(context.Context, query.Spec) ([]coupon.Coupon, int, error) {
	return nil, 0, nil
}

// memStore commits staged writes only on Commit.
type memStore struct {
	orders   map[string]*order.Order
	payments map[string]*payment.Payment

	failOn    string
	failErr   error
	blockOn   string
	onOrder   func()
	begins    int
	rollbacks int
	txnIDs    []string
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]*order.Order{}, payments: map[string]*payment.Payment{}}
}

func (s *memStore) fail(step string) error {
	if s.failOn == step {
		if s.failErr != nil {
			return s.failErr
		}
		return errors.New(step + " failed")
	}
	return nil
}

func (s *memStore) Begin(context.Context) (Tx, error) {
	s.begins++
	if err := s.fail("begin"); err != nil {
		return nil, err
	}
	return &memTx{store: s}, nil
}

type memTx struct {
	store    *memStore
	order    *order.Order
	payment  *payment.Payment
	finished bool
}

func (t *memTx) CreateOrder(ctx context.Context, o *order.Order) error {
	if t.store.onOrder != nil {
		t.store.onOrder()
	}
	if t.store.blockOn == "order" {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := t.store.fail("order"); err != nil {
		return err
	}
	t.order = o
	return nil
}

func (t *memTx) CreatePayment(_ context.Context, p *payment.Payment) error {
	t.store.txnIDs = append(t.store.txnIDs, p.TransactionID)
	if err := t.store.fail("payment"); err != nil {
		return err
	}
	t.payment = p
	return nil
}

func (t *memTx) Commit(context.Context) error {
	if err := t.store.fail("commit"); err != nil {
		return err
	}
	t.store.orders[t.order.ID] = t.order
	t.store.payments[t.payment.ID] = t.payment
	t.finished = true
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.finished {
		return nil
	}
	t.store.rollbacks++
	t.finished = true
	return nil
}

type fakeGateway struct {
	url   string
	err   error
	calls []payment.InitRequest
}

func (g *fakeGateway) Initiate(_ context.Context, req payment.InitRequest) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

var shopper = auth.Identity{UserID: "u1", Role: auth.RoleUser, Name: "Rahim", Email: "rahim@example.com", Phone: "01700000000"}

type fixture struct {
	catalog *memCatalog
	coupons *memCoupons
	store   *memStore
	gateway *fakeGateway
	states  []State
	coord   *Coordinator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	maxDiscount := d("300")
	minOrder := d("2000")
	f := &fixture{
		catalog: &memCatalog{
			products: map[string]product.Product{
				"p1": {ID: "p1", Name: "Blender", Price: d("1000"), Active: true},
			},
			sales: map[string]product.FlashSale{},
		},
		coupons: &memCoupons{byCode: map[string]coupon.Coupon{
			"SAVE20": {
				ID: "c-save20", Code: "SAVE20", DiscountType: coupon.Percentage, DiscountValue: d("20"),
				MaxDiscountAmount: &maxDiscount, Active: true,
				StartDate: time.Now().Add(-time.Hour), EndDate: time.Now().Add(time.Hour),
			},
			"BIG2000": {
				ID: "c-big", Code: "BIG2000", DiscountType: coupon.Flat, DiscountValue: d("100"),
				MinOrderAmount: &minOrder, Active: true,
				StartDate: time.Now().Add(-time.Hour), EndDate: time.Now().Add(time.Hour),
			},
		}},
		store:   newMemStore(),
		gateway: &fakeGateway{url: "https://pay.example.com/session/abc"},
	}

	assembler := order.NewAssembler(
		product.NewPriceResolver(f.catalog),
		coupon.NewResolver(f.coupons),
		delivery.NewClassifier(delivery.DefaultConfig()),
	)
	coord, err := NewCoordinator(assembler, f.store, NewDispatcher(f.gateway), cfg)
	require.NoError(t, err)
	coord.observe = func(s State) { f.states = append(f.states, s) }
	f.coord = coord
	return f
}

func cart(method payment.Method, code string) order.Cart {
	return order.Cart{
		Lines:           []order.CartLine{{ProductID: "p1", Quantity: 2, Color: "black"}},
		CouponCode:      code,
		ShippingAddress: "Banani, Dhaka",
		PaymentMethod:   method,
	}
}

func (f *fixture) onlyPayment(t *testing.T) *payment.Payment {
	t.Helper()
	require.Len(t, f.store.payments, 1)
	for _, p := range f.store.payments {
		return p
	}
	return nil
}

func (f *fixture) assertEmpty(t *testing.T) {
	t.Helper()
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.store.payments)
}

// --- Tests ---

func TestCheckout_CashOnDelivery(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, ""))
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.Empty(t, res.PaymentURL)
	assert.Empty(t, f.gateway.calls)

	require.Len(t, f.store.orders, 1)
	o := f.store.orders[res.OrderID]
	require.NotNil(t, o)
	assertMoney(t, "2000", o.Subtotal)
	assertMoney(t, "0", o.Discount)
	assertMoney(t, "60", o.DeliveryCharge)
	assertMoney(t, "2060", o.FinalAmount)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, payment.StatusPending, o.PaymentStatus)

	p := f.onlyPayment(t)
	assert.Equal(t, res.OrderID, p.OrderID)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Equal(t, payment.COD, p.Method)
	assertMoney(t, "2060", p.Amount)
	assert.NotEmpty(t, p.TransactionID)

	assert.Equal(t, []State{Started, Assembling, Persisting, Committed}, f.states)
}

func TestCheckout_OnlineWithFlashSaleAndCoupon(t *testing.T) {
	f := newFixture(t, Config{})
	f.catalog.sales["p1"] = product.FlashSale{ProductID: "p1", DiscountPercentage: d("10")}

	res, err := f.coord.Checkout(context.Background(), shopper, cart(payment.Online, "SAVE20"))
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/session/abc", res.PaymentURL)

	o := f.store.orders[res.OrderID]
	require.NotNil(t, o)
	assertMoney(t, "900", o.Items[0].UnitPrice)
	assertMoney(t, "1800", o.Subtotal)
	assertMoney(t, "300", o.Discount)
	assertMoney(t, "1560", o.FinalAmount)
	require.NotNil(t, o.CouponID)
	assert.Equal(t, "c-save20", *o.CouponID)

	p := f.onlyPayment(t)
	require.Len(t, f.gateway.calls, 1)
	call := f.gateway.calls[0]
	assertMoney(t, "1560", call.Amount)
	assert.Equal(t, p.TransactionID, call.TransactionID)
	assert.Equal(t, res.OrderID, call.OrderID)
	assert.Equal(t, "rahim@example.com", call.Customer.Email)
	assert.Equal(t, "Banani, Dhaka", call.Customer.Address)
}

func TestCheckout_BelowMinimumWritesNothing(t *testing.T) {
	f := newFixture(t, Config{})
	f.catalog.sales["p1"] = product.FlashSale{ProductID: "p1", DiscountPercentage: d("10")}

	_, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, "BIG2000"))
	require.Error(t, err)
	assert.Equal(t, apperr.BelowMinimum, apperr.KindOf(err))
	assert.Zero(t, f.store.begins)
	f.assertEmpty(t)
	assert.Equal(t, []State{Started, Assembling, Aborted}, f.states)
}

func TestCheckout_GatewayFailureKeepsPendingRecords(t *testing.T) {
	f := newFixture(t, Config{})
	f.gateway.err = errors.New("dial tcp: connection refused")

	res, err := f.coord.Checkout(context.Background(), shopper, cart(payment.Online, ""))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperr.GatewayUnavailable, apperr.KindOf(err))
	assert.NotContains(t, apperr.MessageOf(err), "connection refused")

	require.Len(t, f.store.orders, 1)
	p := f.onlyPayment(t)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Zero(t, f.store.rollbacks)
	assert.Equal(t, Committed, f.states[len(f.states)-1])
}

func TestCheckout_NoGatewayConfigured(t *testing.T) {
	f := newFixture(t, Config{})
	f.coord.dispatcher = NewDispatcher(nil)

	_, err := f.coord.Checkout(context.Background(), shopper, cart(payment.Online, ""))
	assert.Equal(t, apperr.GatewayUnavailable, apperr.KindOf(err))
	assert.Len(t, f.store.orders, 1)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.coord.Checkout(context.Background(), shopper, order.Cart{PaymentMethod: payment.COD, ShippingAddress: "Dhaka"})
	assert.Equal(t, apperr.EmptyCart, apperr.KindOf(err))
	f.assertEmpty(t)
	assert.Equal(t, []State{Started, Aborted}, f.states)
}

func TestCheckout_FailureAfterOrderWriteRollsBack(t *testing.T) {
	for _, step := range []string{"begin", "order", "payment", "commit"} {
		t.Run(step, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.store.failOn = step

			_, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, ""))
			require.Error(t, err)
			assert.Equal(t, apperr.Internal, apperr.KindOf(err))
			f.assertEmpty(t)
			if step != "begin" {
				assert.Equal(t, 1, f.store.rollbacks)
			}
			assert.Equal(t, Aborted, f.states[len(f.states)-1])
		})
	}
}

func TestCheckout_ResubmitAfterAbort(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.failOn = "commit"

	_, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, ""))
	require.Error(t, err)
	f.assertEmpty(t)

	f.store.failOn = ""
	res, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, ""))
	require.NoError(t, err)
	assert.Len(t, f.store.orders, 1)
	assert.Len(t, f.store.payments, 1)
	require.Len(t, f.store.txnIDs, 2)
	assert.NotEqual(t, f.store.txnIDs[0], f.store.txnIDs[1])
	assert.Equal(t, f.store.txnIDs[1], f.onlyPayment(t).TransactionID)
	assert.NotEmpty(t, res.OrderID)
}

func TestCheckout_ConflictIsRetryable(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.failOn = "commit"
	f.store.failErr = apperr.Wrap(apperr.TransactionConflict, errors.New("40001"), "concurrent update, please retry")

	_, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, ""))
	require.Error(t, err)
	assert.Equal(t, apperr.TransactionConflict, apperr.KindOf(err))
	assert.True(t, apperr.Retryable(err))
	f.assertEmpty(t)
}

func TestCheckout_TransactionTimeout(t *testing.T) {
	f := newFixture(t, Config{TxTimeout: 20 * time.Millisecond})
	f.store.blockOn = "order"

	_, err := f.coord.Checkout(context.Background(), shopper, cart(payment.COD, ""))
	require.Error(t, err)
	assert.Equal(t, apperr.TransactionConflict, apperr.KindOf(err))
	assert.Equal(t, 1, f.store.rollbacks)
	f.assertEmpty(t)
}

func TestCheckout_CancelledBeforePersisting(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coord.Checkout(ctx, shopper, cart(payment.COD, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.store.begins)
	f.assertEmpty(t)
}

func TestCheckout_CancelDuringPersistingIsIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.store.onOrder = cancel

	res, err := f.coord.Checkout(ctx, shopper, cart(payment.COD, ""))
	require.NoError(t, err)
	assert.Contains(t, f.store.orders, res.OrderID)
	assert.Len(t, f.store.payments, 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "persisting", Persisting.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "unknown", State(42).String())
}
