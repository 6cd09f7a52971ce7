package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/query"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Inactive, apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Invalid, apperr.BelowMinimum, apperr.EmptyCart:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.GatewayUnavailable:
		return http.StatusBadGateway
	case apperr.TransactionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the failure envelope for err. Unclassified errors are
// logged and reported as "internal error".
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.String("kind", string(kind)), zap.Error(err))
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("message", func(e *jx.Encoder) { e.Str(apperr.MessageOf(err)) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(kind)) })
	})
	writeJSON(w, status, e.Bytes())
}

// writeOK writes the success envelope. data and page are optional.
func writeOK(w http.ResponseWriter, status int, message string, data func(e *jx.Encoder), page *query.Page) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if page != nil {
			e.Field("meta", func(e *jx.Encoder) { encodePage(e, *page) })
		}
		if data != nil {
			e.Field("data", data)
		}
	})
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func encodePage(e *jx.Encoder, p query.Page) {
	optInt := func(v *int) func(e *jx.Encoder) {
		return func(e *jx.Encoder) {
			if v == nil {
				e.Null()
				return
			}
			e.Int(*v)
		}
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("limit", func(e *jx.Encoder) { e.Int(p.Limit) })
		e.Field("total", func(e *jx.Encoder) { e.Int(p.Total) })
		e.Field("totalPage", func(e *jx.Encoder) { e.Int(p.TotalPage) })
		e.Field("nextPage", optInt(p.NextPage))
		e.Field("prevPage", optInt(p.PrevPage))
	})
}
