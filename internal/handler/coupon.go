package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/query"
)

// couponFields holds every coupon attribute a client may send. Absent
// attributes stay nil. An explicit null on a limit clears it.
type couponFields struct {
	Code              *string
	Description       *string
	DiscountType      *coupon.DiscountType
	DiscountValue     *decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         *time.Time
	EndDate           *time.Time
	Active            *bool

	ClearMinOrderAmount    bool
	ClearMaxDiscountAmount bool
}

func decodeCouponFields(w http.ResponseWriter, r *http.Request) (couponFields, error) {
	var f couponFields
	decDecimal := func(d *jx.Decoder, key string) (*decimal.Decimal, error) {
		v, err := decodeDecimal(d, key)
		if err != nil {
			return nil, err
		}
		if v.IsNegative() {
			return nil, apperr.Newf(apperr.Invalid, "%s must not be negative", key)
		}
		return &v, nil
	}
	decTime := func(d *jx.Decoder, key string) (*time.Time, error) {
		v, err := decodeTime(d, key)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	decStr := func(d *jx.Decoder, key string) (*string, error) {
		v, err := decodeString(d, key)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}

	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			f.Code, err = decStr(d, key)
		case "description":
			f.Description, err = decStr(d, key)
		case "discountType":
			var s *string
			if s, err = decStr(d, key); err == nil {
				t := coupon.DiscountType(*s)
				f.DiscountType = &t
			}
		case "discountValue":
			f.DiscountValue, err = decDecimal(d, key)
		case "minOrderAmount":
			if d.Next() == jx.Null {
				f.ClearMinOrderAmount = true
				return d.Null()
			}
			f.MinOrderAmount, err = decDecimal(d, key)
		case "maxDiscountAmount":
			if d.Next() == jx.Null {
				f.ClearMaxDiscountAmount = true
				return d.Null()
			}
			f.MaxDiscountAmount, err = decDecimal(d, key)
		case "startDate":
			f.StartDate, err = decTime(d, key)
		case "endDate":
			f.EndDate, err = decTime(d, key)
		case "isActive":
			if d.Next() != jx.Bool {
				return apperr.New(apperr.Invalid, "isActive must be a boolean")
			}
			var v bool
			if v, err = d.Bool(); err == nil {
				f.Active = &v
			}
		default:
			err = d.Skip()
		}
		return err
	})
	return f, err
}

func (f couponFields) createRequest() (coupon.CreateRequest, error) {
	switch {
	case f.Code == nil:
		return coupon.CreateRequest{}, apperr.New(apperr.Invalid, "code is required")
	case f.DiscountType == nil:
		return coupon.CreateRequest{}, apperr.New(apperr.Invalid, "discountType is required")
	case f.DiscountValue == nil:
		return coupon.CreateRequest{}, apperr.New(apperr.Invalid, "discountValue is required")
	case f.StartDate == nil || f.EndDate == nil:
		return coupon.CreateRequest{}, apperr.New(apperr.Invalid, "startDate and endDate are required")
	}
	req := coupon.CreateRequest{
		Code:              *f.Code,
		DiscountType:      *f.DiscountType,
		DiscountValue:     *f.DiscountValue,
		MinOrderAmount:    f.MinOrderAmount,
		MaxDiscountAmount: f.MaxDiscountAmount,
		StartDate:         *f.StartDate,
		EndDate:           *f.EndDate,
		Active:            f.Active,
	}
	if f.Description != nil {
		req.Description = *f.Description
	}
	return req, nil
}

func (f couponFields) updateRequest() coupon.UpdateRequest {
	return coupon.UpdateRequest{
		Description:       f.Description,
		DiscountType:      f.DiscountType,
		DiscountValue:     f.DiscountValue,
		MinOrderAmount:    f.MinOrderAmount,
		MaxDiscountAmount: f.MaxDiscountAmount,
		StartDate:         f.StartDate,
		EndDate:           f.EndDate,
		Active:            f.Active,

		ClearMinOrderAmount:    f.ClearMinOrderAmount,
		ClearMaxDiscountAmount: f.ClearMaxDiscountAmount,
	}
}

// CreateCoupon handles POST /api/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	f, err := decodeCouponFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := f.createRequest()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.coupons.Create(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Coupon created successfully", func(e *jx.Encoder) {
		encodeCoupon(e, c)
	}, nil)
}

// ListCoupons handles GET /api/coupons. Admin only.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsAdmin() {
		writeError(w, r, apperr.New(apperr.Forbidden, "only admins can list coupons"))
		return
	}
	coupons, page, err := h.coupons.List(r.Context(), query.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Coupons retrieved successfully", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		})
	}, &page)
}

// UpdateCoupon handles PATCH /api/coupons/{code}.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	f, err := decodeCouponFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.coupons.Update(r.Context(), identity(r), r.PathValue("code"), f.updateRequest())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Coupon updated successfully", func(e *jx.Encoder) {
		encodeCoupon(e, c)
	}, nil)
}

// DeleteCoupon handles DELETE /api/coupons/{couponId}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), identity(r), r.PathValue("couponId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Coupon deleted successfully", nil, nil)
}

// ApplyCoupon handles POST /api/coupons/{code}/apply.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		amount decimal.Decimal
		seen   bool
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "orderAmount" {
			return d.Skip()
		}
		v, err := decodeDecimal(d, key)
		amount, seen = v, err == nil
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if !seen {
		writeError(w, r, apperr.New(apperr.Invalid, "orderAmount is required"))
		return
	}

	app, err := h.coupons.Apply(r.Context(), r.PathValue("code"), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Coupon applied successfully", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(app.Coupon.Code) })
			e.Field("discountType", func(e *jx.Encoder) { e.Str(string(app.Coupon.DiscountType)) })
			e.Field("originalAmount", func(e *jx.Encoder) { money(e, app.OriginalAmount) })
			e.Field("discountAmount", func(e *jx.Encoder) { money(e, app.DiscountAmount) })
			e.Field("discountedPrice", func(e *jx.Encoder) { money(e, app.DiscountedPrice) })
		})
	}, nil)
}
