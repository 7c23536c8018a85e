package backend

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/domain/sale"
)

// flexBool accepts true/false as well as 1/0 and their quoted forms.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(data, `"`)) {
	case "true", "1":
		*b = true
	case "false", "0", "null", "":
		*b = false
	default:
		return errors.Errorf("invalid boolean %s", data)
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime parses the timestamp formats the back office emits. Values
// without a zone are read in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unsupported time %q", s)
}

type productDTO struct {
	ID        int64               `json:"id"`
	SKU       string              `json:"sku"`
	Name      string              `json:"name"`
	Stock     int                 `json:"stock"`
	MinStock  int                 `json:"min_stock"`
	Price     decimal.NullDecimal `json:"price"`
	ExpiresAt *string             `json:"expires_at"`
	IsActive  *flexBool           `json:"is_active"`
}

func (d productDTO) toDomain(loc *time.Location) (product.Product, error) {
	p := product.Product{
		ID:       d.ID,
		SKU:      d.SKU,
		Name:     d.Name,
		Stock:    d.Stock,
		MinStock: d.MinStock,
		Active:   d.IsActive == nil || bool(*d.IsActive),
	}
	// A product without a price sells at zero.
	if d.Price.Valid {
		p.Price = d.Price.Decimal
	}
	if d.ExpiresAt != nil && strings.TrimSpace(*d.ExpiresAt) != "" {
		t, err := parseTime(*d.ExpiresAt, loc)
		if err != nil {
			return product.Product{}, errors.Wrapf(err, "product %d expires_at", d.ID)
		}
		// Expiry is a calendar day; "2026-03-10T00:00:00Z" means the 10th in loc too.
		y, m, day := t.Date()
		local := time.Date(y, m, day, 0, 0, 0, 0, loc)
		p.ExpiresAt = &local
	}
	return p, nil
}

type customerDTO struct {
	ID       int64   `json:"id"`
	Document *string `json:"document"`
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

func (d customerDTO) toDomain() customer.Customer {
	return customer.Customer{
		ID:       d.ID,
		Document: deref(d.Document),
		Name:     d.Name,
		Email:    deref(d.Email),
		Phone:    deref(d.Phone),
		Address:  deref(d.Address),
	}
}

// customerRequest is the create body. Empty optional fields are sent as
// null.
type customerRequest struct {
	Document string  `json:"document"`
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	Phone    string  `json:"phone"`
	Address  *string `json:"address"`
}

func newCustomerRequest(f customer.Fields) customerRequest {
	return customerRequest{
		Document: f.Document,
		Name:     f.Name,
		Email:    nonEmpty(f.Email),
		Phone:    f.Phone,
		Address:  nonEmpty(f.Address),
	}
}

type saleDTO struct {
	ID            int64               `json:"id"`
	InvoiceNumber string              `json:"invoice_number"`
	CustomerID    *int64              `json:"customer_id"`
	Status        string              `json:"status"`
	Subtotal      decimal.NullDecimal `json:"subtotal"`
	Discount      decimal.NullDecimal `json:"discount"`
	Tax           decimal.NullDecimal `json:"tax"`
	Total         decimal.NullDecimal `json:"total"`
	IssuedAt      string              `json:"issued_at"`
	PrintedAt     *string             `json:"printed_at"`
	ItemsCount    int                 `json:"items_count"`
	Customer      *customerDTO        `json:"customer"`
}

func (d saleDTO) toDomain(loc *time.Location) *sale.Receipt {
	r := &sale.Receipt{
		ID:            d.ID,
		InvoiceNumber: d.InvoiceNumber,
		Status:        d.Status,
		Subtotal:      d.Subtotal.Decimal,
		Discount:      d.Discount.Decimal,
		Tax:           d.Tax.Decimal,
		Total:         d.Total.Decimal,
	}
	// The order is already accepted; an odd timestamp is not worth failing on.
	if t, err := parseTime(d.IssuedAt, loc); err == nil {
		r.IssuedAt = t
	}
	return r
}

func (d saleDTO) toRecord(loc *time.Location) sale.Record {
	rec := sale.Record{
		Receipt:    *d.toDomain(loc),
		CustomerID: d.CustomerID,
		ItemsCount: d.ItemsCount,
	}
	if d.Customer != nil {
		c := d.Customer.toDomain()
		rec.Customer = &c
		if rec.CustomerID == nil {
			rec.CustomerID = &c.ID
		}
	}
	if d.PrintedAt != nil {
		if t, err := parseTime(*d.PrintedAt, loc); err == nil {
			rec.PrintedAt = &t
		}
	}
	return rec
}

type saleItemDTO struct {
	ID        int64               `json:"id"`
	ProductID int64               `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Discount  decimal.NullDecimal `json:"discount"`
	LineTotal decimal.NullDecimal `json:"line_total"`
	Product   *struct {
		ID   int64  `json:"id"`
		SKU  string `json:"sku"`
		Name string `json:"name"`
	} `json:"product"`
}

type userDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type saleDetailDTO struct {
	saleDTO
	Items []saleItemDTO   `json:"items"`
	User  json.RawMessage `json:"user"`
}

func (d saleDetailDTO) toDomain(loc *time.Location) *sale.Detail {
	out := &sale.Detail{Record: d.toRecord(loc)}
	for _, it := range d.Items {
		item := sale.RecordItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.Decimal,
			Discount:  it.Discount.Decimal,
			LineTotal: it.LineTotal.Decimal,
		}
		if it.Product != nil {
			item.SKU = it.Product.SKU
			item.Name = it.Product.Name
			if item.ProductID == 0 {
				item.ProductID = it.Product.ID
			}
		}
		out.Items = append(out.Items, item)
	}
	if out.ItemsCount == 0 {
		out.ItemsCount = len(out.Items)
	}
	// The user shape is not fixed; anything but an object is ignored.
	var u userDTO
	if !isNull(d.User) && json.Unmarshal(d.User, &u) == nil && (u.ID != 0 || u.Name != "") {
		out.Cashier = &sale.Cashier{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
