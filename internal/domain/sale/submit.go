package sale

import "time"

// CanSubmit reports whether the draft may be sent. It returns ErrEmptyOrder,
// an *InvalidLinesError listing every offending row, or ErrNoCustomer when
// requireCustomer is set and no customer is attached.
func (d *Draft) CanSubmit(requireCustomer bool) error {
	if len(d.lines) == 0 {
		return ErrEmptyOrder
	}
	var bad []LineIssue
	for i, l := range d.lines {
		if reasons := l.issues(); len(reasons) > 0 {
			bad = append(bad, LineIssue{Row: i, Reasons: reasons})
		}
	}
	if len(bad) > 0 {
		return &InvalidLinesError{Lines: bad}
	}
	if requireCustomer && d.customerID == nil {
		return ErrNoCustomer
	}
	return nil
}

// Payload builds the wire payload. It does not validate; call CanSubmit
// first.
func (d *Draft) Payload(issuedAt time.Time) Payload {
	items := make([]PayloadItem, 0, len(d.lines))
	for _, l := range d.lines {
		items = append(items, PayloadItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
		})
	}
	var customerID *int64
	if d.customerID != nil {
		v := *d.customerID
		customerID = &v
	}
	return Payload{
		CustomerID: customerID,
		Items:      items,
		TaxPercent: d.taxPercent,
		Discount:   d.discount,
		IssuedAt:   issuedAt.UTC(),
	}
}
