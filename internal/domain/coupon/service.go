package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/query"
)

const (
	minCodeLen = 3
	maxCodeLen = 20
)

// CreateRequest carries the fields of a new coupon.
type CreateRequest struct {
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	Active            *bool
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Description       *string
	DiscountType      *DiscountType
	DiscountValue     *decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         *time.Time
	EndDate           *time.Time
	Active            *bool

	// ClearMinOrderAmount and ClearMaxDiscountAmount remove the limit
	// entirely and take precedence over the matching value above.
	ClearMinOrderAmount    bool
	ClearMaxDiscountAmount bool
}

// Application is a coupon preview against an order amount.
type Application struct {
	Coupon          *Coupon
	OriginalAmount  decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountedPrice decimal.Decimal
}

// Service implements coupon administration.
type Service struct {
	repo     Repository
	resolver *Resolver
	now      func() time.Time
}

// NewService creates a Service. The resolver is used by Apply.
func NewService(repo Repository, resolver *Resolver) *Service {
	return &Service{repo: repo, resolver: resolver, now: time.Now}
}

// Create stores a new coupon owned by the calling admin.
func (s *Service) Create(ctx context.Context, id auth.Identity, req CreateRequest) (*Coupon, error) {
	if !id.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can create coupons")
	}

	code := NormalizeCode(req.Code)
	if l := len(code); l < minCodeLen || l > maxCodeLen {
		return nil, apperr.Newf(apperr.Invalid, "coupon code must be %d to %d characters", minCodeLen, maxCodeLen)
	}

	now := s.now()
	c := &Coupon{
		ID:                uuid.NewString(),
		Code:              code,
		Description:       req.Description,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		Active:            req.Active == nil || *req.Active,
		CreatedBy:         id.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, apperr.Newf(apperr.Invalid, "coupon %s already exists", code)
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Update applies a partial update to the coupon with the given code.
// Expired coupons cannot be edited.
func (s *Service) Update(ctx context.Context, id auth.Identity, code string, req UpdateRequest) (*Coupon, error) {
	if !id.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only admins can update coupons")
	}

	c, err := s.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "coupon not found")
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := s.now()
	if c.EndDate.Before(now) {
		return nil, apperr.New(apperr.Invalid, "coupon has expired")
	}

	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.DiscountType != nil {
		c.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		c.DiscountValue = *req.DiscountValue
	}
	if req.MinOrderAmount != nil {
		c.MinOrderAmount = req.MinOrderAmount
	}
	if req.MaxDiscountAmount != nil {
		c.MaxDiscountAmount = req.MaxDiscountAmount
	}
	if req.ClearMinOrderAmount {
		c.MinOrderAmount = nil
	}
	if req.ClearMaxDiscountAmount {
		c.MaxDiscountAmount = nil
	}
	if req.StartDate != nil {
		c.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		c.EndDate = *req.EndDate
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	c.UpdatedBy = id.UserID
	c.UpdatedAt = now

	if err := validate(c); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update coupon")
	}
	return c, nil
}

// Delete deactivates the coupon and marks it deleted. The row is kept so
// that orders referencing it stay intact.
func (s *Service) Delete(ctx context.Context, id auth.Identity, couponID string) error {
	if !id.IsAdmin() {
		return apperr.New(apperr.Forbidden, "only admins can delete coupons")
	}
	if _, err := s.repo.FindByID(ctx, couponID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.New(apperr.NotFound, "coupon not found")
		}
		return errors.Wrap(err, "lookup coupon")
	}
	if err := s.repo.SoftDelete(ctx, couponID, id.UserID); err != nil {
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}

// List returns coupons matching spec.
func (s *Service) List(ctx context.Context, spec query.Spec) ([]Coupon, query.Page, error) {
	spec = spec.Normalize()
	coupons, total, err := s.repo.List(ctx, spec)
	if err != nil {
		return nil, query.Page{}, errors.Wrap(err, "list coupons")
	}
	return coupons, query.NewPage(spec, total), nil
}

// Apply previews the coupon against orderAmount without recording anything.
func (s *Service) Apply(ctx context.Context, code string, orderAmount decimal.Decimal) (*Application, error) {
	if orderAmount.IsNegative() {
		return nil, apperr.New(apperr.Invalid, "order amount must not be negative")
	}
	if NormalizeCode(code) == "" {
		return nil, apperr.New(apperr.Invalid, "coupon code is required")
	}

	d, err := s.resolver.Resolve(ctx, code, orderAmount)
	if err != nil {
		return nil, err
	}
	return &Application{
		Coupon:          d.Coupon,
		OriginalAmount:  orderAmount,
		DiscountAmount:  d.Amount,
		DiscountedPrice: orderAmount.Sub(d.Amount),
	}, nil
}

func validate(c *Coupon) error {
	if !c.DiscountType.Valid() {
		return apperr.Newf(apperr.Invalid, "unsupported discount type %q", c.DiscountType)
	}
	if c.DiscountValue.LessThan(decimal.NewFromInt(1)) {
		return apperr.New(apperr.Invalid, "discount value must be at least 1")
	}
	if c.DiscountType == Percentage && c.DiscountValue.GreaterThan(hundred) {
		return apperr.New(apperr.Invalid, "percentage discount cannot exceed 100")
	}
	if c.MinOrderAmount != nil && c.MinOrderAmount.IsNegative() {
		return apperr.New(apperr.Invalid, "minimum order amount must not be negative")
	}
	if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsNegative() {
		return apperr.New(apperr.Invalid, "maximum discount amount must not be negative")
	}
	if !c.StartDate.Before(c.EndDate) {
		return apperr.New(apperr.Invalid, "start date must be before end date")
	}
	return nil
}
