package sale

import (
	"github.com/shopspring/decimal"
)

// QuantityPolicy selects how SetQuantity treats out-of-range input.
type QuantityPolicy int

const (
	// QuantityLive clamps silently; used while the operator is typing.
	QuantityLive QuantityPolicy = iota
	// QuantityCommit clamps, restores non-positive values and reports
	// stock clamps; used when the input is committed.
	QuantityCommit
)

// Line is a single row of an order draft. UnitPrice, MaxStock and Expired are
// copied from the catalog when the product is selected and never refreshed.
type Line struct {
	ProductID int64
	Quantity  int
	Discount  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	MaxStock  int
	Expired   bool
}

func newLine() Line {
	return Line{Quantity: 1}
}

// HasProduct reports whether a product is selected.
func (l Line) HasProduct() bool {
	return l.ProductID != 0
}

// Recalc returns the line with LineTotal derived from its inputs:
// max(0, UnitPrice*Quantity - Discount).
func (l Line) Recalc() Line {
	gross := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	l.LineTotal = floorAtZero(gross.Sub(l.Discount))
	return l
}

// Valid reports whether the line passes its stock and expiry constraints.
func (l Line) Valid() bool {
	return !l.Expired && l.Quantity <= l.MaxStock
}

// issues lists every reason the line cannot be submitted.
func (l Line) issues() []error {
	var out []error
	if !l.HasProduct() {
		out = append(out, ErrNoProduct)
	}
	if l.Quantity <= 0 {
		out = append(out, ErrInvalidQuantity)
	}
	if l.HasProduct() && l.Quantity > l.MaxStock {
		out = append(out, ErrStockExceeded)
	}
	if l.Expired {
		out = append(out, ErrExpiredProduct)
	}
	return out
}

// clearProduct drops the selected product and everything derived from it.
func (l Line) clearProduct() Line {
	l.ProductID = 0
	l.UnitPrice = decimal.Zero
	l.MaxStock = 0
	l.Expired = false
	return l.Recalc()
}

// boundQuantity clamps q into [0, MaxStock], or only at 0 without a product.
func (l Line) boundQuantity(q int) int {
	if q < 0 {
		return 0
	}
	if l.HasProduct() && q > l.MaxStock {
		return l.MaxStock
	}
	return q
}

// restoredQuantity is the quantity a committed non-positive value becomes.
func restoredQuantity(maxStock int) int {
	if maxStock > 0 {
		return 1
	}
	return 0
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
