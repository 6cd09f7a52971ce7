package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/query"
)

// QueryService answers order lookups and handles admin status changes.
type QueryService struct {
	orders   Repository
	payments payment.Repository
}

// NewQueryService creates a QueryService.
func NewQueryService(orders Repository, payments payment.Repository) *QueryService {
	return &QueryService{orders: orders, payments: payments}
}

// HasPurchased reports whether the user has any order containing the
// product, whatever its status.
func (s *QueryService) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	ok, err := s.orders.HasPurchased(ctx, userID, productID)
	if err != nil {
		return false, errors.Wrap(err, "check purchase")
	}
	return ok, nil
}

// Get returns the order with its payment. Only the owner and admins may see
// an order.
func (s *QueryService) Get(ctx context.Context, id auth.Identity, orderID string) (*Details, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "order not found")
		}
		return nil, errors.Wrap(err, "get order")
	}
	if !id.IsAdmin() && o.UserID != id.UserID {
		return nil, apperr.New(apperr.Forbidden, "unauthorized access")
	}

	p, err := s.payments.FindByOrderID(ctx, o.ID)
	switch {
	case errors.Is(err, payment.ErrNotFound):
		p = nil
	case err != nil:
		return nil, errors.Wrap(err, "get payment")
	}
	return &Details{Order: o, Payment: p}, nil
}

// ListAll returns every order. Admin only.
func (s *QueryService) ListAll(ctx context.Context, id auth.Identity, spec query.Spec) ([]Order, query.Page, error) {
	if !id.IsAdmin() {
		return nil, query.Page{}, apperr.New(apperr.Forbidden, "unauthorized access")
	}
	spec = spec.Normalize()
	orders, total, err := s.orders.List(ctx, spec)
	if err != nil {
		return nil, query.Page{}, errors.Wrap(err, "list orders")
	}
	return orders, query.NewPage(spec, total), nil
}

// ListMine returns the caller's own orders.
func (s *QueryService) ListMine(ctx context.Context, id auth.Identity, spec query.Spec) ([]Order, query.Page, error) {
	spec = spec.Normalize()
	orders, total, err := s.orders.ListByUser(ctx, id.UserID, spec)
	if err != nil {
		return nil, query.Page{}, errors.Wrap(err, "list user orders")
	}
	return orders, query.NewPage(spec, total), nil
}

// UpdateStatus sets the fulfilment status of an order. Admin only.
func (s *QueryService) UpdateStatus(ctx context.Context, id auth.Identity, orderID string, status Status) (*Order, error) {
	if !id.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "unauthorized access")
	}
	if !status.Valid() {
		return nil, apperr.Newf(apperr.Invalid, "unknown order status %q", status)
	}
	o, err := s.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "order not found")
		}
		return nil, errors.Wrap(err, "update order status")
	}
	return o, nil
}
