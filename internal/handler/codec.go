package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/json"
	"github.com/ogen-go/ogen/validate"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
)

const maxBodySize = 1 << 20

// decodeBody reads the request body as a JSON object and calls field for
// every key. Malformed input is reported as Invalid.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return apperr.Wrap(apperr.Invalid, err, "cannot read request body")
	}
	if err := jx.DecodeBytes(body).Obj(field); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Wrap(apperr.Invalid, err, "malformed JSON body")
	}
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, apperr.Newf(apperr.Invalid, "%s must be a number", field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperr.Newf(apperr.Invalid, "%s must be a number", field)
	}
	return v, nil
}

// decodeTime accepts RFC 3339 timestamps and plain dates.
func decodeTime(d *jx.Decoder, field string) (time.Time, error) {
	if d.Next() != jx.String {
		return time.Time{}, apperr.Newf(apperr.Invalid, "%s must be a date string", field)
	}
	raw, err := d.Raw()
	if err != nil {
		return time.Time{}, err
	}
	if t, err := json.DecodeDateTime(jx.DecodeBytes(raw)); err == nil {
		return t.UTC(), nil
	}
	if t, err := json.DecodeDate(jx.DecodeBytes(raw)); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Newf(apperr.Invalid, "%s must be an RFC 3339 date", field)
}

// fieldError classifies a failed ogen constraint check as Invalid.
func fieldError(field, msg string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.Invalid, &validate.Error{
		Fields: []validate.FieldError{{Name: field, Error: err}},
	}, msg)
}

func decodeString(d *jx.Decoder, field string) (string, error) {
	if d.Next() != jx.String {
		return "", apperr.Newf(apperr.Invalid, "%s must be a string", field)
	}
	return d.Str()
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.Round(2).InexactFloat64())
}

func timestamp(e *jx.Encoder, t time.Time) {
	json.EncodeDateTime(e, t.UTC())
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.UnitPrice) })
						e.Field("color", func(e *jx.Encoder) { e.Str(it.Color) })
					})
				}
			})
		})
		e.Field("coupon", func(e *jx.Encoder) {
			if o.CouponID == nil {
				e.Null()
				return
			}
			e.Str(*o.CouponID)
		})
		e.Field("totalPrice", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Discount) })
		e.Field("deliveryCharge", func(e *jx.Encoder) { money(e, o.DeliveryCharge) })
		e.Field("finalAmount", func(e *jx.Encoder) { money(e, o.FinalAmount) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("shippingAddress", func(e *jx.Encoder) { e.Str(o.ShippingAddress) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("paymentStatus", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
	})
}

func encodePayment(e *jx.Encoder, p *payment.Payment) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("order", func(e *jx.Encoder) { e.Str(p.OrderID) })
		e.Field("method", func(e *jx.Encoder) { e.Str(string(p.Method)) })
		e.Field("transactionId", func(e *jx.Encoder) { e.Str(p.TransactionID) })
		e.Field("amount", func(e *jx.Encoder) { money(e, p.Amount) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, p.CreatedAt) })
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	optMoney := func(v *decimal.Decimal) func(e *jx.Encoder) {
		return func(e *jx.Encoder) {
			if v == nil {
				e.Null()
				return
			}
			money(e, *v)
		}
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { money(e, c.DiscountValue) })
		e.Field("minOrderAmount", optMoney(c.MinOrderAmount))
		e.Field("maxDiscountAmount", optMoney(c.MaxDiscountAmount))
		e.Field("startDate", func(e *jx.Encoder) { timestamp(e, c.StartDate) })
		e.Field("endDate", func(e *jx.Encoder) { timestamp(e, c.EndDate) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.Active) })
		e.Field("createdBy", func(e *jx.Encoder) { e.Str(c.CreatedBy) })
		e.Field("updatedBy", func(e *jx.Encoder) { e.Str(c.UpdatedBy) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, c.UpdatedAt) })
	})
}

func encodeOffer(e *jx.Encoder, o product.Offer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.Product.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Product.Name) })
		e.Field("price", func(e *jx.Encoder) { money(e, o.Product.Price) })
		e.Field("discountPercentage", func(e *jx.Encoder) { money(e, o.DiscountPercentage) })
		e.Field("offerPrice", func(e *jx.Encoder) { money(e, o.OfferPrice) })
	})
}
