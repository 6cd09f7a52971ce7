package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/payment"
)

func TestGateway_Initiate(t *testing.T) {
	g := New("https://pay.local/s/")
	req := payment.InitRequest{Amount: decimal.NewFromInt(1560), TransactionID: "TXN-1", OrderID: "o1"}

	url, err := g.Initiate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.local/s/TXN-1", url)

	s, ok := g.Session("TXN-1")
	require.True(t, ok)
	assert.Equal(t, "o1", s.OrderID)
	assert.Equal(t, "1560.00", s.Amount)
}

func TestGateway_InitiateIdempotent(t *testing.T) {
	g := New("")
	req := payment.InitRequest{Amount: decimal.NewFromInt(10), TransactionID: "TXN-2", OrderID: "o1"}

	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := req
			r.OrderID = "o" + string(rune('a'+i))
			u, err := g.Initiate(context.Background(), r)
			assert.NoError(t, err)
			urls[i] = u
		}(i)
	}
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, urls[0], u)
	}
	s, ok := g.Session("TXN-2")
	require.True(t, ok)
	assert.Equal(t, urls[0], s.URL)
}

func TestGateway_InitiateRejects(t *testing.T) {
	g := New("")

	_, err := g.Initiate(context.Background(), payment.InitRequest{Amount: decimal.NewFromInt(1)})
	require.Error(t, err)

	_, err = g.Initiate(context.Background(), payment.InitRequest{TransactionID: "TXN-3"})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Initiate(ctx, payment.InitRequest{Amount: decimal.NewFromInt(1), TransactionID: "TXN-4"})
	require.ErrorIs(t, err, context.Canceled)

	_, ok := g.Session("TXN-4")
	assert.False(t, ok)
}

func TestGateway_EvictsOldestSessions(t *testing.T) {
	g := New("", WithCapacity(2))
	for i := 1; i <= 3; i++ {
		_, err := g.Initiate(context.Background(), payment.InitRequest{
			Amount:        decimal.NewFromInt(10),
			TransactionID: fmt.Sprintf("TXN-%d", i),
		})
		require.NoError(t, err)
	}

	_, ok := g.Session("TXN-1")
	assert.False(t, ok)
	for _, id := range []string{"TXN-2", "TXN-3"} {
		_, ok := g.Session(id)
		assert.True(t, ok, id)
	}

	// Repeating a retained transaction does not evict anything.
	_, err := g.Initiate(context.Background(), payment.InitRequest{Amount: decimal.NewFromInt(10), TransactionID: "TXN-3"})
	require.NoError(t, err)
	_, ok = g.Session("TXN-2")
	assert.True(t, ok)
}

func TestGateway_ServePage(t *testing.T) {
	g := New("")
	_, err := g.Initiate(context.Background(), payment.InitRequest{
		Amount:        decimal.RequireFromString("1560.5"),
		TransactionID: "TXN-9",
		OrderID:       "o9",
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sandbox/pay/{transactionId}", g.ServePage)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "known session",
			path:       "/sandbox/pay/TXN-9",
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"message":"Payment session retrieved","data":{"transactionId":"TXN-9","orderId":"o9","amount":"1560.50"}}`,
		},
		{
			name:       "unknown session",
			path:       "/sandbox/pay/TXN-0",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"success":false,"message":"payment session not found","kind":"NotFound"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}
