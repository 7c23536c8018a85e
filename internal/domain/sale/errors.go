package sale

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/salesdesk/internal/domain/customer"
)

// Line errors. ErrExpiredProduct and ErrStockExceeded are usually reported as
// a Notice rather than returned.
var (
	ErrDuplicateProduct = errors.New("product already selected in another line")
	ErrExpiredProduct   = errors.New("product is expired and cannot be sold")
	ErrStockExceeded    = errors.New("quantity exceeds available stock")
	ErrProductInactive  = errors.New("product is not active")
	ErrNoProduct        = errors.New("line has no product")
	ErrInvalidQuantity  = errors.New("quantity must be greater than 0")
	ErrNegativeDiscount = errors.New("discount must not be negative")
	ErrRowOutOfRange    = errors.New("line index out of range")
	ErrLastRow          = errors.New("an order keeps at least one line")
	ErrInvalidPolicy    = errors.New("unknown quantity policy")
)

// Submission errors. Nothing is sent when one of these is returned.
var (
	ErrEmptyOrder   = errors.New("add at least one product")
	ErrInvalidLines = errors.New("order has invalid lines")
	ErrNoCustomer   = customer.ErrNoCustomer
)

// Builder flow errors.
var (
	ErrWrongStep = errors.New("operation not allowed at current step")
	ErrSubmitted = errors.New("sale already submitted")
)

// Notice is a non-fatal condition raised while editing a line. Err is either
// ErrExpiredProduct or ErrStockExceeded; for the latter From and To hold the
// quantity before and after clamping.
type Notice struct {
	Row  int
	Err  error
	From int
	To   int
}

func (n Notice) String() string {
	if errors.Is(n.Err, ErrStockExceeded) {
		return fmt.Sprintf("row %d: %s, adjusted from %d to %d", n.Row, n.Err, n.From, n.To)
	}
	return fmt.Sprintf("row %d: %s", n.Row, n.Err)
}

// LineIssue lists why a single line blocks submission.
type LineIssue struct {
	Row     int
	Reasons []error
}

// InvalidLinesError is returned by CanSubmit when one or more lines are
// invalid. It unwraps to ErrInvalidLines.
type InvalidLinesError struct {
	Lines []LineIssue
}

func (e *InvalidLinesError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidLines.Error())
	for i, l := range e.Lines {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "row %d: ", l.Row)
		for j, r := range l.Reasons {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.Error())
		}
	}
	return b.String()
}

func (e *InvalidLinesError) Unwrap() error {
	return ErrInvalidLines
}
