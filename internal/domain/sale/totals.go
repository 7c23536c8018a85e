package sale

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals is a snapshot of the order figures. Only Tax is rounded.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Base       decimal.Decimal
	TaxPercent decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
}

// Subtotal is the sum of all line totals.
func (d *Draft) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range d.lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// EffectiveBase is the subtotal minus the order discount, floored at 0.
func (d *Draft) EffectiveBase() decimal.Decimal {
	return floorAtZero(d.Subtotal().Sub(d.discount))
}

// Tax is the base times the tax percent, rounded half away from zero to
// two places.
func (d *Draft) Tax() decimal.Decimal {
	return d.EffectiveBase().Mul(d.taxPercent).Div(hundred).Round(2)
}

// Total is the effective base plus tax.
func (d *Draft) Total() decimal.Decimal {
	return d.EffectiveBase().Add(d.Tax())
}

// Totals computes every aggregate in one pass.
func (d *Draft) Totals() Totals {
	base := d.EffectiveBase()
	tax := base.Mul(d.taxPercent).Div(hundred).Round(2)
	return Totals{
		Subtotal:   d.Subtotal(),
		Discount:   d.discount,
		Base:       base,
		TaxPercent: d.taxPercent,
		Tax:        tax,
		Total:      base.Add(tax),
	}
}
