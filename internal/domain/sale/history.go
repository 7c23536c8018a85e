package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/customer"
)

// ErrSaleNotFound is returned when a submitted sale cannot be found.
var ErrSaleNotFound = errors.New("sale not found")

// Record is a submitted sale as kept by the back office.
type Record struct {
	Receipt
	CustomerID *int64
	Customer   *customer.Customer
	PrintedAt  *time.Time
	ItemsCount int
}

// RecordItem is a sold line of a Record.
type RecordItem struct {
	ID        int64
	ProductID int64
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	LineTotal decimal.Decimal
}

// Cashier is the back-office user who issued a sale.
type Cashier struct {
	ID    int64
	Name  string
	Email string
}

// Detail is a Record with its lines and issuing user.
type Detail struct {
	Record
	Items   []RecordItem
	Cashier *Cashier
}

// History reads sales already submitted.
type History interface {
	List(ctx context.Context) ([]Record, error)
	// Get returns ErrSaleNotFound when id is unknown.
	Get(ctx context.Context, id int64) (*Detail, error)
}
