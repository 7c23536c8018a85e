package customer

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrCustomerNotFound is returned when no customer matches the searched
	// document. It is not fatal: the operator may retry or switch mode.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrDocumentRequired is returned when a search is attempted without a
	// document.
	ErrDocumentRequired = errors.New("provide a document to search for a customer")
	// ErrNoCustomer is returned when the current mode requires a customer and
	// none has been resolved yet.
	ErrNoCustomer = errors.New("customer required")
	// ErrInvalidCustomer is returned when inline customer fields fail validation.
	ErrInvalidCustomer = errors.New("invalid customer data")
	// ErrInvalidMode is returned for an unknown customer mode.
	ErrInvalidMode = errors.New("invalid customer mode")
	// ErrModeMismatch is returned when an operation does not apply to the
	// current mode, e.g. searching while creating a new customer.
	ErrModeMismatch = errors.New("operation not allowed in current customer mode")
)

// Mode selects how a sale gets its customer.
type Mode string

const (
	// ModeRegistered looks up an existing customer by document.
	ModeRegistered Mode = "registered"
	// ModeNew creates a customer inline from the entered fields.
	ModeNew Mode = "new"
	// ModeNone sells without a customer.
	ModeNone Mode = "none"
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRegistered, ModeNew, ModeNone:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidMode, "%q", s)
	}
}

// Customer is a customer record owned by the back office.
type Customer struct {
	ID       int64
	Document string
	Name     string
	Email    string
	Phone    string
	Address  string
}

// Fields holds the inline data used to create a customer.
type Fields struct {
	Document string `json:"document" validate:"required"`
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address"`
}

func (f Fields) trimmed() Fields {
	return Fields{
		Document: strings.TrimSpace(f.Document),
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		Phone:    strings.TrimSpace(f.Phone),
		Address:  strings.TrimSpace(f.Address),
	}
}

// InvalidFieldsError lists the inline fields that failed validation, keyed by
// their JSON name.
type InvalidFieldsError struct {
	Fields map[string]string
}

func (e *InvalidFieldsError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(ErrInvalidCustomer.Error())
	for i, name := range names {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(e.Fields[name])
	}
	return b.String()
}

func (e *InvalidFieldsError) Unwrap() error {
	return ErrInvalidCustomer
}

// Repository provides customer lookup and creation.
type Repository interface {
	List(ctx context.Context) ([]Customer, error)
	Create(ctx context.Context, f Fields) (*Customer, error)
}
