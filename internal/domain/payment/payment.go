// Package payment defines payment records and the online gateway contract.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method is how the customer pays for an order.
type Method string

const (
	COD    Method = "COD"
	Online Method = "Online"
)

// Valid reports whether m is a supported payment method.
func (m Method) Valid() bool {
	return m == COD || m == Online
}

// Status tracks settlement of a payment.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusFailed  Status = "Failed"
)

// ErrNotFound is returned when an order has no payment record.
var ErrNotFound = errors.New("payment not found")

// Payment records the intent to collect FinalAmount for an order.
type Payment struct {
	ID            string
	UserID        string
	OrderID       string
	Method        Method
	TransactionID string
	Amount        decimal.Decimal
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository reads payment records.
type Repository interface {
	FindByOrderID(ctx context.Context, orderID string) (*Payment, error)
}

// Customer is the payer as reported to the gateway.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// InitRequest asks a gateway to start an online payment session.
type InitRequest struct {
	Amount        decimal.Decimal
	TransactionID string
	OrderID       string
	Customer      Customer
}

// Gateway starts online payments and returns the URL the customer is sent
// to. Implementations must treat TransactionID as an idempotency key.
type Gateway interface {
	Initiate(ctx context.Context, req InitRequest) (redirectURL string, err error)
}

// NewTransactionID returns a fresh globally unique transaction id.
func NewTransactionID() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
