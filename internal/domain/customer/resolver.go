package customer

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	validatorv10 "github.com/go-playground/validator/v10"
)

// Resolver drives the customer step of a sale: it tracks the selected mode,
// the entered search document or inline fields, and the resolved customer.
//
// A Resolver is owned by a single builder session and is not safe for
// concurrent use. Failed lookups or creations never change the resolved
// customer, except for a search that completes without a match.
type Resolver struct {
	repo     Repository
	validate *validatorv10.Validate

	mode     Mode
	document string
	fields   Fields
	resolved *Customer
}

// NewResolver returns a Resolver in ModeRegistered.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{
		repo:     repo,
		validate: newValidator(),
		mode:     ModeRegistered,
	}
}

// Mode returns the current mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// SetMode switches the mode. Switching to a different mode clears the
// resolved customer; any mode other than ModeNew discards inline fields.
func (r *Resolver) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	if m == r.mode {
		return nil
	}
	r.mode = m
	r.resolved = nil
	if m != ModeNew {
		r.fields = Fields{}
	}
	return nil
}

// RequiredFields lists the inputs the operator must fill in the current mode.
func (r *Resolver) RequiredFields() []string {
	switch r.mode {
	case ModeRegistered:
		return []string{"search_document"}
	case ModeNew:
		return []string{"document", "name", "phone"}
	default:
		return nil
	}
}

// RequiresCustomer reports whether a sale in the current mode needs a
// resolved customer before it can be submitted.
func (r *Resolver) RequiresCustomer() bool {
	return r.mode != ModeNone
}

// SetDocument records the document to search for.
func (r *Resolver) SetDocument(doc string) {
	r.document = doc
}

// Document returns the entered search document.
func (r *Resolver) Document() string {
	return r.document
}

// SetFields records inline customer data. Only valid in ModeNew.
func (r *Resolver) SetFields(f Fields) error {
	if r.mode != ModeNew {
		return errors.Wrapf(ErrModeMismatch, "inline fields require mode %q", ModeNew)
	}
	r.fields = f
	return nil
}

// Fields returns the entered inline customer data.
func (r *Resolver) Fields() Fields {
	return r.fields
}

// Search resolves a registered customer by exact document match.
func (r *Resolver) Search(ctx context.Context) (Customer, error) {
	if r.mode != ModeRegistered {
		return Customer{}, errors.Wrapf(ErrModeMismatch, "search requires mode %q", ModeRegistered)
	}
	doc := strings.TrimSpace(r.document)
	if doc == "" {
		return Customer{}, ErrDocumentRequired
	}

	customers, err := r.repo.List(ctx)
	if err != nil {
		return Customer{}, errors.Wrap(err, "list customers")
	}

	for _, c := range customers {
		if c.Document == doc {
			r.resolved = &c
			return c, nil
		}
	}

	r.resolved = nil
	return Customer{}, ErrCustomerNotFound
}

// Create validates the inline fields and creates the customer through the
// repository. The assigned customer becomes the resolved one.
func (r *Resolver) Create(ctx context.Context) (Customer, error) {
	if r.mode != ModeNew {
		return Customer{}, errors.Wrapf(ErrModeMismatch, "create requires mode %q", ModeNew)
	}

	f := r.fields.trimmed()
	if err := validateFields(r.validate, f); err != nil {
		return Customer{}, err
	}

	c, err := r.repo.Create(ctx, f)
	if err != nil {
		return Customer{}, errors.Wrap(err, "create customer")
	}
	if c == nil || c.ID == 0 {
		return Customer{}, errors.Wrap(ErrNoCustomer, "created customer has no id")
	}

	r.resolved = c
	return *c, nil
}

// Ready reports whether the customer step is complete.
func (r *Resolver) Ready() error {
	if !r.RequiresCustomer() {
		return nil
	}
	if r.resolved == nil {
		return ErrNoCustomer
	}
	return nil
}

// Customer returns the resolved customer, if any.
func (r *Resolver) Customer() (Customer, bool) {
	if r.resolved == nil {
		return Customer{}, false
	}
	return *r.resolved, true
}

// CustomerID returns the resolved customer id, or nil.
func (r *Resolver) CustomerID() *int64 {
	if r.resolved == nil {
		return nil
	}
	id := r.resolved.ID
	return &id
}
