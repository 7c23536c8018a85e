package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/product"
)

// DefaultTaxPercent is the tax rate applied when none is configured.
var DefaultTaxPercent = decimal.NewFromInt(19)

// Step is the current stage of the builder.
type Step int

const (
	StepCustomer Step = iota + 1
	StepLines
)

func (s Step) String() string {
	switch s {
	case StepCustomer:
		return "customer"
	case StepLines:
		return "lines"
	default:
		return "unknown"
	}
}

// Receipt is the backend's answer to an accepted order.
type Receipt struct {
	ID            int64
	InvoiceNumber string
	Status        string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	IssuedAt      time.Time
}

// OrderCreator submits a finished order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, p Payload) (*Receipt, error)
}

// Config holds builder settings.
type Config struct {
	TaxPercent decimal.Decimal
}

// Option is a catalog product as offered for a given row.
type Option struct {
	Product  product.Product
	Disabled bool
	Expired  bool
}

// Builder drives a single sale from customer resolution to submission.
// Builder is not safe for concurrent use.
type Builder struct {
	catalog  *product.Catalog
	customer *customer.Resolver
	draft    *Draft
	orders   OrderCreator
	step     Step
	receipt  *Receipt

	now func() time.Time
}

// Open loads the catalog and returns a builder at the customer step with a
// one-line draft.
func Open(
	ctx context.Context,
	cfg Config,
	products product.Repository,
	customers customer.Repository,
	orders OrderCreator,
) (*Builder, error) {
	if cfg.TaxPercent.IsNegative() {
		return nil, errors.Errorf("negative tax percent %s", cfg.TaxPercent)
	}
	list, err := products.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	catalog, err := product.NewCatalog(list)
	if err != nil {
		return nil, errors.Wrap(err, "build catalog")
	}

	b := &Builder{
		catalog:  catalog,
		customer: customer.NewResolver(customers),
		orders:   orders,
		step:     StepCustomer,
		now:      time.Now,
	}
	b.draft = NewDraft(catalog, cfg.TaxPercent)
	b.draft.now = func() time.Time { return b.now() }
	return b, nil
}

// Step returns the current stage of the flow.
func (b *Builder) Step() Step { return b.step }

// Catalog returns the snapshot loaded when the builder was opened.
func (b *Builder) Catalog() *product.Catalog { return b.catalog }

// Customer exposes the customer resolver for reading.
func (b *Builder) Customer() *customer.Resolver { return b.customer }

// Draft exposes the draft for reading. Mutations must go through the
// builder so step rules apply.
func (b *Builder) Draft() *Draft { return b.draft }

// Receipt returns the backend receipt once the order has been accepted.
func (b *Builder) Receipt() (*Receipt, bool) {
	return b.receipt, b.receipt != nil
}

// Submitted reports whether the backend accepted the order.
func (b *Builder) Submitted() bool { return b.receipt != nil }

// SetCustomerMode switches how the customer is resolved.
func (b *Builder) SetCustomerMode(m customer.Mode) error {
	if err := b.at(StepCustomer); err != nil {
		return err
	}
	return b.customer.SetMode(m)
}

// SearchCustomer looks up a registered customer by document.
func (b *Builder) SearchCustomer(ctx context.Context, document string) (customer.Customer, error) {
	if err := b.at(StepCustomer); err != nil {
		return customer.Customer{}, err
	}
	b.customer.SetDocument(document)
	return b.customer.Search(ctx)
}

// CreateCustomer registers a new customer and, on success, advances to the
// line step.
func (b *Builder) CreateCustomer(ctx context.Context, f customer.Fields) (customer.Customer, error) {
	if err := b.at(StepCustomer); err != nil {
		return customer.Customer{}, err
	}
	if err := b.customer.SetFields(f); err != nil {
		return customer.Customer{}, err
	}
	c, err := b.customer.Create(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	if err := b.Advance(); err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

// Advance moves from the customer step to the line step once the customer
// requirement of the current mode is met.
func (b *Builder) Advance() error {
	if err := b.at(StepCustomer); err != nil {
		return err
	}
	if err := b.customer.Ready(); err != nil {
		return err
	}
	b.draft.SetCustomerID(b.customer.CustomerID())
	b.step = StepLines
	return nil
}

// AddRow appends an empty line and returns its row.
func (b *Builder) AddRow() (int, error) {
	if err := b.editable(); err != nil {
		return 0, err
	}
	return b.draft.AddRow(), nil
}

// RemoveRow deletes row i. The last remaining line cannot be removed.
func (b *Builder) RemoveRow(i int) error {
	if err := b.editable(); err != nil {
		return err
	}
	return b.draft.RemoveRow(i)
}

// SelectProduct binds a catalog product to row i. See Draft.SelectProduct.
func (b *Builder) SelectProduct(i int, productID int64) ([]Notice, error) {
	if err := b.editable(); err != nil {
		return nil, err
	}
	return b.draft.SelectProduct(i, productID)
}

// SetQuantity updates the quantity of row i. See Draft.SetQuantity.
func (b *Builder) SetQuantity(i, q int, policy QuantityPolicy) ([]Notice, error) {
	if err := b.editable(); err != nil {
		return nil, err
	}
	return b.draft.SetQuantity(i, q, policy)
}

// SetLineDiscount sets the discount amount of row i.
func (b *Builder) SetLineDiscount(i int, discount decimal.Decimal) error {
	if err := b.editable(); err != nil {
		return err
	}
	return b.draft.SetLineDiscount(i, discount)
}

// SetDiscount sets the order-level discount amount.
func (b *Builder) SetDiscount(discount decimal.Decimal) error {
	if err := b.editable(); err != nil {
		return err
	}
	return b.draft.SetDiscount(discount)
}

// Options lists the catalog for row i. Products held by other rows are
// disabled; expired products are flagged but still selectable.
func (b *Builder) Options(i int) ([]Option, error) {
	if err := b.draft.checkRow(i); err != nil {
		return nil, err
	}
	now := b.now()
	products := b.catalog.Products()
	out := make([]Option, 0, len(products))
	for _, p := range products {
		if !p.Active {
			continue
		}
		out = append(out, Option{
			Product:  p,
			Disabled: !b.draft.IsProductAvailable(p.ID, i),
			Expired:  p.ExpiredOn(now),
		})
	}
	return out, nil
}

// CanSubmit reports whether Submit would send the order.
func (b *Builder) CanSubmit() error {
	if b.receipt != nil {
		return ErrSubmitted
	}
	if err := b.at(StepLines); err != nil {
		return err
	}
	return b.draft.CanSubmit(b.customer.RequiresCustomer())
}

// Submit validates the draft and sends it. The draft is left untouched when
// validation or the backend call fails. A submitted builder is closed.
func (b *Builder) Submit(ctx context.Context) (*Receipt, error) {
	if err := b.CanSubmit(); err != nil {
		return nil, err
	}
	issuedAt := b.now().UTC()
	r, err := b.orders.CreateOrder(ctx, b.draft.Payload(issuedAt))
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if r == nil {
		r = &Receipt{}
	}
	b.draft.issuedAt = issuedAt
	b.receipt = r
	return r, nil
}

func (b *Builder) at(step Step) error {
	if b.step != step {
		return errors.Wrapf(ErrWrongStep, "at %s, need %s", b.step, step)
	}
	return nil
}

func (b *Builder) editable() error {
	if b.receipt != nil {
		return ErrSubmitted
	}
	return b.at(StepLines)
}
