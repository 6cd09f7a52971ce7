package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/query"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// Percentage takes a share of the subtotal, optionally capped.
	Percentage DiscountType = "Percentage"
	// Flat takes a fixed amount, never more than the subtotal.
	Flat DiscountType = "Flat"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == Percentage || t == Flat
}

var (
	// ErrNotFound is returned by repositories when no coupon matches.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned by repositories when a code is taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// NormalizeCode canonicalizes a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Coupon is a discount rule looked up by code.
type Coupon struct {
	ID                string
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	Active            bool
	Deleted           bool
	CreatedBy         string
	UpdatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Usable reports whether the coupon can be redeemed at t.
func (c *Coupon) Usable(t time.Time) bool {
	return c.Active && !c.Deleted && !t.Before(c.StartDate) && !t.After(c.EndDate)
}

// Repository provides coupon persistence.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByID(ctx context.Context, id string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	SoftDelete(ctx context.Context, id, updatedBy string) error
	List(ctx context.Context, spec query.Spec) ([]Coupon, int, error)
}
