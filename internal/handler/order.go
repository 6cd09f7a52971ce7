package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/validate"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/query"
)

// decodeCart parses the checkout payload. Prices sent by the client are
// ignored.
func decodeCart(w http.ResponseWriter, r *http.Request) (order.Cart, error) {
	var cart order.Cart
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				line, err := decodeCartLine(d)
				if err != nil {
					return err
				}
				cart.Lines = append(cart.Lines, line)
				return nil
			})
		case "coupon":
			if d.Next() == jx.Null {
				return d.Null()
			}
			code, err := decodeString(d, "coupon")
			cart.CouponCode = code
			return err
		case "shippingAddress":
			addr, err := decodeString(d, "shippingAddress")
			cart.ShippingAddress = addr
			return err
		case "paymentMethod":
			m, err := decodeString(d, "paymentMethod")
			cart.PaymentMethod = payment.Method(m)
			return err
		default:
			return d.Skip()
		}
	})
	return cart, err
}

var quantityLimit = validate.Int{MaxSet: true, Max: order.MaxQuantity}

func decodeCartLine(d *jx.Decoder) (order.CartLine, error) {
	var line order.CartLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product":
			id, err := decodeString(d, "product")
			line.ProductID = id
			return err
		case "quantity":
			if d.Next() != jx.Number {
				return apperr.New(apperr.Invalid, "quantity must be an integer")
			}
			q, err := d.Int()
			if err != nil {
				return apperr.New(apperr.Invalid, "quantity must be an integer")
			}
			line.Quantity = q
			return fieldError("quantity", fmt.Sprintf("quantity must not exceed %d", order.MaxQuantity),
				quantityLimit.Validate(int64(q)))
		case "color":
			c, err := decodeString(d, "color")
			line.Color = c
			return err
		default:
			return d.Skip()
		}
	})
	return line, err
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	cart, err := decodeCart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.checkout.Checkout(r.Context(), identity(r), cart)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, "Order placed successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orderId", func(e *jx.Encoder) { e.Str(res.OrderID) })
			e.Field("paymentUrl", func(e *jx.Encoder) {
				if res.PaymentURL == "" {
					e.Null()
					return
				}
				e.Str(res.PaymentURL)
			})
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, res.Order) })
			e.Field("payment", func(e *jx.Encoder) { encodePayment(e, res.Payment) })
		})
	}, nil)
}

// ListOrders handles GET /api/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, page, err := h.orders.ListAll(r.Context(), identity(r), query.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Orders retrieved successfully", func(e *jx.Encoder) {
		encodeOrders(e, orders)
	}, &page)
}

// MyOrders handles GET /api/orders/my-orders.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, page, err := h.orders.ListMine(r.Context(), identity(r), query.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Orders retrieved successfully", func(e *jx.Encoder) {
		encodeOrders(e, orders)
	}, &page)
}

// GetOrder handles GET /api/orders/{orderId}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.Get(r.Context(), identity(r), r.PathValue("orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Order retrieved successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, details.Order) })
			e.Field("payment", func(e *jx.Encoder) {
				if details.Payment == nil {
					e.Null()
					return
				}
				encodePayment(e, details.Payment)
			})
		})
	}, nil)
}

// UpdateOrderStatus handles PATCH /api/orders/{orderId}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var status order.Status
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := decodeString(d, "status")
		status = order.Status(s)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), identity(r), r.PathValue("orderId"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Order status updated successfully", func(e *jx.Encoder) {
		encodeOrder(e, o)
	}, nil)
}

// CheckPurchase handles GET /api/orders/check-purchase/{productId}.
func (h *Handler) CheckPurchase(w http.ResponseWriter, r *http.Request) {
	ok, err := h.orders.HasPurchased(r.Context(), identity(r).UserID, r.PathValue("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Purchase status retrieved successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("hasPurchased", func(e *jx.Encoder) { e.Bool(ok) })
		})
	}, nil)
}
