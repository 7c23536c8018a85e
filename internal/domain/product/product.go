package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateID is returned when a catalog snapshot lists the same id twice.
	ErrDuplicateID = errors.New("duplicate product id in catalog")
)

// Product is a catalog entry as seen by the sales desk. Price and Stock are
// read at the time the catalog snapshot is taken.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Price     decimal.Decimal
	Stock     int
	MinStock  int
	ExpiresAt *time.Time
	Active    bool
}

// ExpiredOn reports whether the product expired before the calendar day of
// now. A product expiring today is still sellable.
func (p Product) ExpiredOn(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return p.ExpiresAt.Before(startOfDay(now))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Repository lists the products available for sale.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
}
