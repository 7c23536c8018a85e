package sale

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// IssuedAtLayout is the UTC millisecond timestamp layout of issued_at.
const IssuedAtLayout = "2006-01-02T15:04:05.000Z"

// PayloadItem is a single order line as sent to the sales backend.
type PayloadItem struct {
	ProductID int64
	Quantity  int
	Discount  decimal.Decimal
}

// Payload is the order submission body.
type Payload struct {
	CustomerID *int64
	Items      []PayloadItem
	TaxPercent decimal.Decimal
	Discount   decimal.Decimal
	IssuedAt   time.Time
}

// Encode writes the payload as a JSON object. Decimals are written as exact
// JSON numbers.
func (p Payload) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("customer_id")
	if p.CustomerID != nil {
		e.Int64(*p.CustomerID)
	} else {
		e.Null()
	}
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range p.Items {
		it.Encode(e)
	}
	e.ArrEnd()
	e.FieldStart("tax_percent")
	encodeDecimal(e, p.TaxPercent)
	e.FieldStart("discount")
	encodeDecimal(e, p.Discount)
	e.FieldStart("issued_at")
	e.Str(p.IssuedAt.UTC().Format(IssuedAtLayout))
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	p.Encode(e)
	return append([]byte(nil), e.Bytes()...), nil
}

// Encode writes the item as a JSON object.
func (it PayloadItem) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Int64(it.ProductID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("discount")
	encodeDecimal(e, it.Discount)
	e.ObjEnd()
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}
