// Package handler exposes checkout, order, coupon and flash sale operations
// over HTTP with a uniform JSON envelope.
package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/query"
)

// Checkouter runs checkouts.
type Checkouter interface {
	Checkout(ctx context.Context, id auth.Identity, cart order.Cart) (*checkout.Result, error)
}

// Orders serves order reads and status updates.
type Orders interface {
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
	Get(ctx context.Context, id auth.Identity, orderID string) (*order.Details, error)
	ListAll(ctx context.Context, id auth.Identity, spec query.Spec) ([]order.Order, query.Page, error)
	ListMine(ctx context.Context, id auth.Identity, spec query.Spec) ([]order.Order, query.Page, error)
	UpdateStatus(ctx context.Context, id auth.Identity, orderID string, status order.Status) (*order.Order, error)
}

// Coupons serves coupon administration and previews.
type Coupons interface {
	Create(ctx context.Context, id auth.Identity, req coupon.CreateRequest) (*coupon.Coupon, error)
	Update(ctx context.Context, id auth.Identity, code string, req coupon.UpdateRequest) (*coupon.Coupon, error)
	Delete(ctx context.Context, id auth.Identity, couponID string) error
	List(ctx context.Context, spec query.Spec) ([]coupon.Coupon, query.Page, error)
	Apply(ctx context.Context, code string, orderAmount decimal.Decimal) (*coupon.Application, error)
}

// FlashSales serves flash sale administration and listing.
type FlashSales interface {
	Create(ctx context.Context, id auth.Identity, req product.CreateFlashSaleRequest) error
	ListActive(ctx context.Context, spec query.Spec) ([]product.Offer, query.Page, error)
}

// Handler holds the HTTP endpoints.
type Handler struct {
	checkout   Checkouter
	orders     Orders
	coupons    Coupons
	flashSales FlashSales
	auth       *Authenticator
}

// New creates a Handler.
func New(
	checkout Checkouter,
	orders Orders,
	coupons Coupons,
	flashSales FlashSales,
	authenticator *Authenticator,
) *Handler {
	return &Handler{
		checkout:   checkout,
		orders:     orders,
		coupons:    coupons,
		flashSales: flashSales,
		auth:       authenticator,
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	authed := h.auth.Require

	mux.HandleFunc("POST /api/orders", authed(h.PlaceOrder))
	mux.HandleFunc("GET /api/orders", authed(h.ListOrders))
	mux.HandleFunc("GET /api/orders/my-orders", authed(h.MyOrders))
	mux.HandleFunc("GET /api/orders/check-purchase/{productId}", authed(h.CheckPurchase))
	mux.HandleFunc("GET /api/orders/{orderId}", authed(h.GetOrder))
	mux.HandleFunc("PATCH /api/orders/{orderId}/status", authed(h.UpdateOrderStatus))

	mux.HandleFunc("POST /api/coupons", authed(h.CreateCoupon))
	mux.HandleFunc("GET /api/coupons", authed(h.ListCoupons))
	mux.HandleFunc("PATCH /api/coupons/{code}", authed(h.UpdateCoupon))
	mux.HandleFunc("DELETE /api/coupons/{couponId}", authed(h.DeleteCoupon))
	mux.HandleFunc("POST /api/coupons/{code}/apply", h.ApplyCoupon)

	mux.HandleFunc("POST /api/flash-sales", authed(h.CreateFlashSale))
	mux.HandleFunc("GET /api/flash-sales", h.ListFlashSales)

	mux.HandleFunc("/api/", h.NotFound)
}

// NotFound answers unknown API routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, []byte(`{"success":false,"message":"API not found","kind":"NotFound"}`))
}

// identity returns the caller stored by Authenticator.Require.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
