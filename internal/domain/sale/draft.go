package sale

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/product"
)

// Draft is an order under construction. It always holds at least one line.
// Draft is not safe for concurrent use.
type Draft struct {
	catalog    *product.Catalog
	lines      []Line
	discount   decimal.Decimal
	taxPercent decimal.Decimal
	customerID *int64
	issuedAt   time.Time

	now func() time.Time
}

// NewDraft returns a draft with a single empty line.
func NewDraft(catalog *product.Catalog, taxPercent decimal.Decimal) *Draft {
	return &Draft{
		catalog:    catalog,
		lines:      []Line{newLine()},
		taxPercent: taxPercent,
		now:        time.Now,
	}
}

// Len returns the number of lines.
func (d *Draft) Len() int {
	return len(d.lines)
}

// Lines returns a copy of the lines.
func (d *Draft) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}

// Line returns the line at row i.
func (d *Draft) Line(i int) (Line, error) {
	if err := d.checkRow(i); err != nil {
		return Line{}, err
	}
	return d.lines[i], nil
}

// Discount returns the order-level discount amount.
func (d *Draft) Discount() decimal.Decimal { return d.discount }

// TaxPercent returns the rate applied to the effective base.
func (d *Draft) TaxPercent() decimal.Decimal { return d.taxPercent }

// CustomerID returns the resolved customer, nil for an anonymous sale.
func (d *Draft) CustomerID() *int64 { return d.customerID }

// IssuedAt returns the submission timestamp, zero until the order is accepted.
func (d *Draft) IssuedAt() time.Time { return d.issuedAt }

// SetCustomerID sets or clears the customer the order is issued to.
func (d *Draft) SetCustomerID(id *int64) {
	if id == nil {
		d.customerID = nil
		return
	}
	v := *id
	d.customerID = &v
}

// AddRow appends an empty line and returns its index.
func (d *Draft) AddRow() int {
	d.lines = append(d.lines, newLine())
	return len(d.lines) - 1
}

// RemoveRow deletes the line at row i. The last remaining line cannot be
// removed.
func (d *Draft) RemoveRow(i int) error {
	if err := d.checkRow(i); err != nil {
		return err
	}
	if len(d.lines) <= 1 {
		return ErrLastRow
	}
	d.lines = append(d.lines[:i], d.lines[i+1:]...)
	return nil
}

// IsProductAvailable reports whether productID is free to select on row
// exceptRow, that is no other line already holds it.
func (d *Draft) IsProductAvailable(productID int64, exceptRow int) bool {
	if productID == 0 {
		return true
	}
	for i, l := range d.lines {
		if i != exceptRow && l.ProductID == productID {
			return false
		}
	}
	return true
}

// SelectProduct binds productID to row i, copying price, stock and expiry
// from the catalog. A zero productID clears the selection.
//
// Selecting a product held by another line reverts the row to no product
// and returns ErrDuplicateProduct. Unknown and inactive products leave the
// row untouched. Expiry and stock clamps are reported as notices.
func (d *Draft) SelectProduct(i int, productID int64) ([]Notice, error) {
	if err := d.checkRow(i); err != nil {
		return nil, err
	}
	l := d.lines[i]
	if productID == 0 {
		d.lines[i] = l.clearProduct()
		return nil, nil
	}
	if !d.IsProductAvailable(productID, i) {
		d.lines[i] = l.clearProduct()
		return nil, errors.Wrapf(ErrDuplicateProduct, "product %d", productID)
	}
	p, ok := d.catalog.Get(productID)
	if !ok {
		return nil, errors.Wrapf(product.ErrNotFound, "product %d", productID)
	}
	if !p.Active {
		return nil, errors.Wrapf(ErrProductInactive, "product %d", productID)
	}

	l.ProductID = p.ID
	l.UnitPrice = p.Price
	l.MaxStock = max(p.Stock, 0)
	l.Expired = p.ExpiredOn(d.now())

	var notices []Notice
	if l.Expired {
		notices = append(notices, Notice{Row: i, Err: ErrExpiredProduct})
	}
	if l.Quantity > l.MaxStock {
		notices = append(notices, Notice{Row: i, Err: ErrStockExceeded, From: l.Quantity, To: l.MaxStock})
		l.Quantity = l.MaxStock
	}
	if l.Quantity <= 0 {
		l.Quantity = restoredQuantity(l.MaxStock)
	}
	d.lines[i] = l.Recalc()
	return notices, nil
}

// SetQuantity updates the quantity of row i under the given policy.
//
// QuantityLive clamps into [0, MaxStock] without notices. QuantityCommit
// clamps values above MaxStock with a notice and turns non-positive values
// into 1, or 0 when nothing is in stock. Without a product both policies
// only floor the value at 0.
func (d *Draft) SetQuantity(i, q int, policy QuantityPolicy) ([]Notice, error) {
	if err := d.checkRow(i); err != nil {
		return nil, err
	}
	l := d.lines[i]
	var notices []Notice
	switch policy {
	case QuantityLive:
		l.Quantity = l.boundQuantity(q)
	case QuantityCommit:
		switch {
		case !l.HasProduct():
			l.Quantity = max(q, 0)
		case q > l.MaxStock:
			notices = append(notices, Notice{Row: i, Err: ErrStockExceeded, From: q, To: l.MaxStock})
			l.Quantity = l.MaxStock
		case q <= 0:
			l.Quantity = restoredQuantity(l.MaxStock)
		default:
			l.Quantity = q
		}
	default:
		return nil, errors.Wrapf(ErrInvalidPolicy, "policy %d", policy)
	}
	d.lines[i] = l.Recalc()
	return notices, nil
}

// SetLineDiscount sets the absolute discount of row i.
func (d *Draft) SetLineDiscount(i int, discount decimal.Decimal) error {
	if err := d.checkRow(i); err != nil {
		return err
	}
	if discount.IsNegative() {
		return ErrNegativeDiscount
	}
	l := d.lines[i]
	l.Discount = discount
	d.lines[i] = l.Recalc()
	return nil
}

// SetDiscount sets the order-level discount applied before tax.
func (d *Draft) SetDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrNegativeDiscount
	}
	d.discount = discount
	return nil
}

func (d *Draft) checkRow(i int) error {
	if i < 0 || i >= len(d.lines) {
		return errors.Wrapf(ErrRowOutOfRange, "row %d of %d", i, len(d.lines))
	}
	return nil
}
