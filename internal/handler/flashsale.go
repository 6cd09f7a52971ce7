package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/query"
)

// CreateFlashSale handles POST /api/flash-sales.
func (h *Handler) CreateFlashSale(w http.ResponseWriter, r *http.Request) {
	var req product.CreateFlashSaleRequest
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				id, err := decodeString(d, "products")
				req.ProductIDs = append(req.ProductIDs, id)
				return err
			})
		case "discountPercentage":
			v, err := decodeDecimal(d, key)
			req.DiscountPercentage = v
			return err
		case "endsAt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			t, err := decodeTime(d, key)
			if err != nil {
				return err
			}
			req.EndsAt = &t
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.flashSales.Create(r.Context(), identity(r), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Flash sale created successfully", nil, nil)
}

// ListFlashSales handles GET /api/flash-sales.
func (h *Handler) ListFlashSales(w http.ResponseWriter, r *http.Request) {
	offers, page, err := h.flashSales.ListActive(r.Context(), query.Parse(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Flash sales retrieved successfully", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, o := range offers {
				encodeOffer(e, o)
			}
		})
	}, &page)
}
