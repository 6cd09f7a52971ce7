package sslcommerz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/payment"
)

func testRequest() payment.InitRequest {
	return payment.InitRequest{
		Amount:        decimal.RequireFromString("1560"),
		TransactionID: "TXN-ABC",
		OrderID:       "order-1",
		Customer:      payment.Customer{Name: "Karim", Email: "karim@example.com", Phone: "017", Address: "Dhaka"},
	}
}

func TestClient_Initiate(t *testing.T) {
	var got http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = *r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","failedreason":null,"sessionkey":"abc","gw":{"visa":"x"},"GatewayPageURL":"https://sandbox.sslcommerz.com/EasyCheckOut/abc"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", StoreID: "store", StorePassword: "secret"}, srv.Client())
	url, err := c.Initiate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.sslcommerz.com/EasyCheckOut/abc", url)

	assert.Equal(t, initPath, got.URL.Path)
	assert.Equal(t, "store", got.PostForm.Get("store_id"))
	assert.Equal(t, "secret", got.PostForm.Get("store_passwd"))
	assert.Equal(t, "1560.00", got.PostForm.Get("total_amount"))
	assert.Equal(t, "TXN-ABC", got.PostForm.Get("tran_id"))
	assert.Equal(t, "BDT", got.PostForm.Get("currency"))
	assert.Equal(t, "karim@example.com", got.PostForm.Get("cus_email"))
	assert.Equal(t, "order-1", got.PostForm.Get("value_a"))
}

func TestClient_InitiateFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "rejected", status: http.StatusOK, body: `{"status":"FAILED","failedreason":"Store Credential Error Or Store is De-active"}`, wantMsg: "Store Credential Error"},
		{name: "rejected without reason", status: http.StatusOK, body: `{"status":"FAILED"}`, wantMsg: "status FAILED"},
		{name: "missing url", status: http.StatusOK, body: `{"status":"SUCCESS"}`, wantMsg: "no gateway page url"},
		{name: "http error", status: http.StatusBadGateway, body: `oops`, wantMsg: "unexpected status 502"},
		{name: "malformed json", status: http.StatusOK, body: `{"status":`, wantMsg: "decode init response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Config{BaseURL: srv.URL, StoreID: "s", StorePassword: "p"}, srv.Client()).
				Initiate(context.Background(), testRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_InitiateTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client())
	_, err := c.Initiate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send init request")
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{StoreID: "s"}.Enabled())
	assert.True(t, Config{StoreID: "s", StorePassword: "p"}.Enabled())
}
