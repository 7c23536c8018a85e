package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/sale"
)

// Money is rendered as decimal strings so no precision is lost.

type stateDTO struct {
	ID        string        `json:"id"`
	Step      string        `json:"step"`
	Submitted bool          `json:"submitted"`
	Customer  customerState `json:"customer"`
	Lines     []lineDTO     `json:"lines"`
	Totals    totalsDTO     `json:"totals"`
	CanSubmit bool          `json:"can_submit"`
	Receipt   *receiptDTO   `json:"receipt,omitempty"`
	Notices   []noticeDTO   `json:"notices,omitempty"`
}

type customerState struct {
	Mode           string       `json:"mode"`
	RequiredFields []string     `json:"required_fields"`
	Document       string       `json:"document,omitempty"`
	Resolved       *customerDTO `json:"resolved"`
}

type customerDTO struct {
	ID       int64  `json:"id"`
	Document string `json:"document"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

type lineDTO struct {
	Row       int             `json:"row"`
	ProductID *int64          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	MaxStock  int             `json:"max_stock"`
	Expired   bool            `json:"expired"`
	Valid     bool            `json:"valid"`
}

type totalsDTO struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Base       decimal.Decimal `json:"base"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
}

type receiptDTO struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        string          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	IssuedAt      string          `json:"issued_at"`
}

type saleDTO struct {
	receiptDTO
	CustomerID *int64       `json:"customer_id"`
	Customer   *customerDTO `json:"customer"`
	PrintedAt  *string      `json:"printed_at"`
	ItemsCount int          `json:"items_count"`
}

type saleItemDTO struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type cashierDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type saleDetailDTO struct {
	saleDTO
	Items   []saleItemDTO `json:"items"`
	Cashier *cashierDTO   `json:"cashier"`
}

type noticeDTO struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
	From    *int   `json:"from,omitempty"`
	To      *int   `json:"to,omitempty"`
}

type optionDTO struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	ExpiresAt *string         `json:"expires_at"`
	Expired   bool            `json:"expired"`
	Disabled  bool            `json:"disabled"`
}

// Requests.

type modeRequest struct {
	Mode string `json:"mode"`
}

type searchRequest struct {
	Document string `json:"document"`
}

type productRequest struct {
	ProductID *int64 `json:"product_id"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
	Commit   bool `json:"commit"`
}

type discountRequest struct {
	Discount *decimal.Decimal `json:"discount"`
}

type rowResponse struct {
	Row   int      `json:"row"`
	State stateDTO `json:"state"`
}

func newState(id string, b *sale.Builder, notices []sale.Notice) stateDTO {
	d := b.Draft()
	res := b.Customer()

	st := stateDTO{
		ID:        id,
		Step:      b.Step().String(),
		Submitted: b.Submitted(),
		Customer: customerState{
			Mode:           string(res.Mode()),
			RequiredFields: res.RequiredFields(),
			Document:       res.Document(),
		},
		Totals:    newTotals(d.Totals()),
		CanSubmit: b.Step() == sale.StepLines && b.CanSubmit() == nil,
	}
	if st.Customer.RequiredFields == nil {
		st.Customer.RequiredFields = []string{}
	}
	if c, ok := res.Customer(); ok {
		dto := newCustomer(c)
		st.Customer.Resolved = &dto
	}
	for i, l := range d.Lines() {
		st.Lines = append(st.Lines, newLine(i, l))
	}
	if r, ok := b.Receipt(); ok {
		st.Receipt = newReceipt(r)
	}
	for _, n := range notices {
		st.Notices = append(st.Notices, newNotice(n))
	}
	return st
}

func newCustomer(c customer.Customer) customerDTO {
	return customerDTO{
		ID:       c.ID,
		Document: c.Document,
		Name:     c.Name,
		Email:    c.Email,
		Phone:    c.Phone,
		Address:  c.Address,
	}
}

func newLine(row int, l sale.Line) lineDTO {
	dto := lineDTO{
		Row:       row,
		Quantity:  l.Quantity,
		Discount:  l.Discount,
		UnitPrice: l.UnitPrice,
		LineTotal: l.LineTotal,
		MaxStock:  l.MaxStock,
		Expired:   l.Expired,
		Valid:     l.HasProduct() && l.Valid(),
	}
	if l.HasProduct() {
		id := l.ProductID
		dto.ProductID = &id
	}
	return dto
}

func newTotals(t sale.Totals) totalsDTO {
	return totalsDTO{
		Subtotal:   t.Subtotal,
		Discount:   t.Discount,
		Base:       t.Base,
		TaxPercent: t.TaxPercent,
		Tax:        t.Tax,
		Total:      t.Total,
	}
}

func newReceipt(r *sale.Receipt) *receiptDTO {
	dto := &receiptDTO{
		ID:            r.ID,
		InvoiceNumber: r.InvoiceNumber,
		Status:        r.Status,
		Subtotal:      r.Subtotal,
		Discount:      r.Discount,
		Tax:           r.Tax,
		Total:         r.Total,
	}
	if !r.IssuedAt.IsZero() {
		dto.IssuedAt = r.IssuedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func newSale(rec sale.Record) saleDTO {
	dto := saleDTO{
		receiptDTO: *newReceipt(&rec.Receipt),
		CustomerID: rec.CustomerID,
		ItemsCount: rec.ItemsCount,
	}
	if rec.Customer != nil {
		c := newCustomer(*rec.Customer)
		dto.Customer = &c
	}
	if rec.PrintedAt != nil {
		at := rec.PrintedAt.UTC().Format(time.RFC3339)
		dto.PrintedAt = &at
	}
	return dto
}

func newSaleDetail(d *sale.Detail) saleDetailDTO {
	dto := saleDetailDTO{
		saleDTO: newSale(d.Record),
		Items:   make([]saleItemDTO, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		dto.Items = append(dto.Items, saleItemDTO{
			ID:        it.ID,
			ProductID: it.ProductID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
			LineTotal: it.LineTotal,
		})
	}
	if d.Cashier != nil {
		dto.Cashier = &cashierDTO{ID: d.Cashier.ID, Name: d.Cashier.Name, Email: d.Cashier.Email}
	}
	return dto
}

func newNotice(n sale.Notice) noticeDTO {
	dto := noticeDTO{
		Row:     n.Row,
		Code:    codeOf(n.Err),
		Message: n.String(),
	}
	if n.From != n.To {
		from, to := n.From, n.To
		dto.From, dto.To = &from, &to
	}
	return dto
}

func newOption(o sale.Option) optionDTO {
	dto := optionDTO{
		ID:       o.Product.ID,
		SKU:      o.Product.SKU,
		Name:     o.Product.Name,
		Price:    o.Product.Price,
		Stock:    o.Product.Stock,
		Expired:  o.Expired,
		Disabled: o.Disabled,
	}
	if o.Product.ExpiresAt != nil {
		s := o.Product.ExpiresAt.Format(expiryLayout)
		dto.ExpiresAt = &s
	}
	return dto
}

const expiryLayout = "2006-01-02"
