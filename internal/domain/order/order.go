package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/query"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// LineItem is a priced product line. UnitPrice is fixed at checkout time.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Color     string
}

// Order represents a committed customer order.
type Order struct {
	ID              string
	UserID          string
	Items           []LineItem
	CouponID        *string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	DeliveryCharge  decimal.Decimal
	FinalAmount     decimal.Decimal
	Status          Status
	ShippingAddress string
	PaymentMethod   payment.Method
	PaymentStatus   payment.Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Details is an order together with its payment record, if any.
type Details struct {
	Order   *Order
	Payment *payment.Payment
}

// Repository defines order reads and the admin status update.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, spec query.Spec) ([]Order, int, error)
	ListByUser(ctx context.Context, userID string, spec query.Spec) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
}
