// Package sandbox provides an in-process payment gateway for local
// development and tests. It never contacts an external service.
package sandbox

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/payment"
)

var _ payment.Gateway = (*Gateway)(nil)

// Session is a payment session opened with the sandbox.
type Session struct {
	TransactionID string
	OrderID       string
	Amount        string
	URL           string
}

// DefaultCapacity is the number of sessions kept before the oldest is
// evicted.
const DefaultCapacity = 1024

// Gateway records sessions keyed by transaction id. Repeated initiation with
// the same transaction id returns the original session URL while the session
// is retained.
type Gateway struct {
	baseURL  string
	capacity int

	mu       sync.RWMutex
	sessions map[string]Session
	order    []string // insertion order, oldest first
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCapacity bounds the number of retained sessions. Values below one are
// ignored.
func WithCapacity(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.capacity = n
		}
	}
}

// New creates a Gateway that issues URLs under baseURL.
func New(baseURL string, opts ...Option) *Gateway {
	if baseURL == "" {
		baseURL = "http://localhost:8080/sandbox/pay"
	}
	g := &Gateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		capacity: DefaultCapacity,
		sessions: make(map[string]Session),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initiate opens or returns the session for req.TransactionID.
func (g *Gateway) Initiate(ctx context.Context, req payment.InitRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.TransactionID == "" {
		return "", errors.New("transaction id is required")
	}
	if !req.Amount.IsPositive() {
		return "", errors.Errorf("amount must be positive, got %s", req.Amount)
	}

	g.mu.RLock()
	s, ok := g.sessions[req.TransactionID]
	g.mu.RUnlock()
	if ok {
		return s.URL, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[req.TransactionID]; ok {
		return s.URL, nil
	}
	s = Session{
		TransactionID: req.TransactionID,
		OrderID:       req.OrderID,
		Amount:        req.Amount.StringFixed(2),
		URL:           g.baseURL + "/" + url.PathEscape(req.TransactionID),
	}
	for len(g.order) >= g.capacity {
		delete(g.sessions, g.order[0])
		g.order = g.order[1:]
	}
	g.sessions[req.TransactionID] = s
	g.order = append(g.order, req.TransactionID)
	return s.URL, nil
}

// Session returns the session recorded for a transaction id.
func (g *Gateway) Session(transactionID string) (Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sessions[transactionID]
	return s, ok
}

// ServePage handles GET requests for a session page, identified by the
// transactionId path value.
func (g *Gateway) ServePage(w http.ResponseWriter, r *http.Request) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	w.Header().Set("Content-Type", "application/json")
	s, ok := g.Session(r.PathValue("transactionId"))
	if !ok {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
			e.Field("message", func(e *jx.Encoder) { e.Str("payment session not found") })
			e.Field("kind", func(e *jx.Encoder) { e.Str("NotFound") })
		})
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(e.Bytes())
		return
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("message", func(e *jx.Encoder) { e.Str("Payment session retrieved") })
		e.Field("data", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("transactionId", func(e *jx.Encoder) { e.Str(s.TransactionID) })
				e.Field("orderId", func(e *jx.Encoder) { e.Str(s.OrderID) })
				e.Field("amount", func(e *jx.Encoder) { e.Str(s.Amount) })
			})
		})
	})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}
