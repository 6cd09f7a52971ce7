//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const testSecret = "e2e-secret"

var (
	server  *httptest.Server
	tokens  = map[string]string{}
	e2eUser = []auth.User{
		{ID: "u-shopper", Name: "Shopper", Email: "shopper@example.com", Role: auth.RoleUser, Active: true},
		{ID: "u-admin", Name: "Admin", Email: "admin@example.com", Role: auth.RoleAdmin, Active: true},
		{ID: "u-blocked", Name: "Blocked", Email: "blocked@example.com", Role: auth.RoleUser, Active: false},
	}
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		panic(err)
	}
	defer func() { _ = testcontainers.TerminateContainer(ctr) }()

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		panic(err)
	}
	defer pool.Close()
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		panic(err)
	}

	users := postgres.NewUserRepository(pool)
	for _, u := range e2eUser {
		if err := users.UpsertUser(ctx, u); err != nil {
			panic(err)
		}
		token, err := handler.Issue([]byte(testSecret), u, time.Hour, time.Now())
		if err != nil {
			panic(err)
		}
		tokens[u.ID] = token
	}
	if err := postgres.NewProductRepository(pool).UpsertProducts(ctx, []product.Product{
		{ID: "p-blender", Name: "Blender", Price: decimal.NewFromInt(1000), Active: true},
		{ID: "p-retired", Name: "Retired", Price: decimal.NewFromInt(10), Active: false},
	}); err != nil {
		panic(err)
	}

	cfg := &Config{
		DatabaseURL: dsn,
		JWTSecret:   testSecret,
		Delivery:    DeliveryConfig{MetroKeyword: "dhaka", MetroRate: 60, DefaultRate: 120},
		Checkout:    CheckoutConfig{TxTimeout: 5 * time.Second},
		Gateway:     GatewayConfig{Provider: ProviderSandbox, SandboxURL: "http://pay.test/sandbox/pay"},
		RateLimit:   RateLimitConfig{Rate: 1000, Burst: 1000},
		CORS:        CORSConfig{Origins: []string{"*"}},
	}
	mux := http.NewServeMux()
	if err := registerAPI(mux, pool, cfg, noopProviders{}); err != nil {
		panic(err)
	}
	server = httptest.NewServer(withMiddleware(ctx, mux, cfg, noopProviders{}))
	defer server.Close()

	return m.Run()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, method, path, user string, body any) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, server.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+tokens[user])
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func cart(productID string, qty int, method string) map[string]any {
	return map[string]any{
		"products":        []map[string]any{{"product": productID, "quantity": qty, "color": "red"}},
		"shippingAddress": "Mirpur, Dhaka",
		"paymentMethod":   method,
	}
}

func TestE2E_PlaceOrderRejections(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		body       any
		wantStatus int
		wantKind   string
	}{
		{name: "no auth", body: cart("p-blender", 1, "COD"), wantStatus: http.StatusUnauthorized, wantKind: "Unauthorized"},
		{name: "blocked user", user: "u-blocked", body: cart("p-blender", 1, "COD"), wantStatus: http.StatusForbidden, wantKind: "Inactive"},
		{
			name:       "empty cart",
			user:       "u-shopper",
			body:       map[string]any{"products": []any{}, "shippingAddress": "Dhaka", "paymentMethod": "COD"},
			wantStatus: http.StatusBadRequest,
			wantKind:   "EmptyCart",
		},
		{name: "unknown product", user: "u-shopper", body: cart("p-ghost", 1, "COD"), wantStatus: http.StatusNotFound, wantKind: "NotFound"},
		{name: "inactive product", user: "u-shopper", body: cart("p-retired", 1, "COD"), wantStatus: http.StatusForbidden, wantKind: "Inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := do(t, http.MethodPost, "/api/orders", tt.user, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantKind, env.Kind)
		})
	}
}

func TestE2E_CashOnDeliveryOrder(t *testing.T) {
	resp, env := do(t, http.MethodPost, "/api/orders", "u-shopper", cart("p-blender", 2, "COD"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	require.True(t, env.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var placed struct {
		OrderID    string  `json:"orderId"`
		PaymentURL *string `json:"paymentUrl"`
		Order      struct {
			TotalPrice float64 `json:"totalPrice"`
			Status     string  `json:"status"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	assert.NotEmpty(t, placed.OrderID)
	assert.Nil(t, placed.PaymentURL)
	assert.InDelta(t, 2000, placed.Order.TotalPrice, 0.001)

	resp, env = do(t, http.MethodGet, "/api/orders/"+placed.OrderID, "u-shopper", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	resp, env = do(t, http.MethodGet, "/api/orders/check-purchase/p-blender", "u-shopper", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"hasPurchased":true}`, string(env.Data))
}

func TestE2E_OnlineOrderReturnsPaymentURL(t *testing.T) {
	resp, env := do(t, http.MethodPost, "/api/orders", "u-shopper", cart("p-blender", 1, "Online"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	var placed struct {
		PaymentURL *string `json:"paymentUrl"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	require.NotNil(t, placed.PaymentURL)
	assert.Contains(t, *placed.PaymentURL, "http://pay.test/sandbox/pay/")

	page, err := url.Parse(*placed.PaymentURL)
	require.NoError(t, err)
	resp, env = do(t, http.MethodGet, page.Path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"amount":"1060.00"`)

	resp, env = do(t, http.MethodGet, "/sandbox/pay/TXN-unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", env.Kind)
}

func TestE2E_AdminOnlyEndpoints(t *testing.T) {
	resp, env := do(t, http.MethodGet, "/api/orders", "u-shopper", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden", env.Kind)

	resp, env = do(t, http.MethodGet, "/api/orders", "u-admin", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestE2E_CouponLifecycle(t *testing.T) {
	resp, env := do(t, http.MethodPost, "/api/coupons", "u-admin", map[string]any{
		"code":              "e2e10",
		"discountType":      "Percentage",
		"discountValue":     10,
		"minOrderAmount":    500,
		"startDate":         time.Now().Add(-time.Hour).Format(time.RFC3339),
		"endDate":           time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	resp, env = do(t, http.MethodPost, "/api/coupons/E2E10/apply", "", map[string]any{"orderAmount": 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var applied struct {
		DiscountAmount  float64 `json:"discountAmount"`
		DiscountedPrice float64 `json:"discountedPrice"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &applied))
	assert.InDelta(t, 100, applied.DiscountAmount, 0.001)
	assert.InDelta(t, 900, applied.DiscountedPrice, 0.001)

	resp, env = do(t, http.MethodPost, "/api/coupons/E2E10/apply", "", map[string]any{"orderAmount": 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BelowMinimum", env.Kind)
}

func TestE2E_UnknownRoute(t *testing.T) {
	resp, env := do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "API not found", env.Message)
}
