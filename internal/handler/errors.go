package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/salesdesk/internal/backend"
	"github.com/xenking/salesdesk/internal/domain/customer"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/internal/session"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

type errorResponse struct {
	Error   string    `json:"error"`
	Code    string    `json:"code"`
	Details any       `json:"details,omitempty"`
	State   *stateDTO `json:"state,omitempty"`
}

type lineIssueDTO struct {
	Row     int      `json:"row"`
	Reasons []string `json:"reasons"`
}

type errorKind struct {
	target error
	status int
	code   string
}

// Order matters: wrapped sentinels are matched first to last.
var errorKinds = []errorKind{
	{errBadRequest, http.StatusBadRequest, "BAD_REQUEST"},
	{ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{ErrBusy, http.StatusConflict, "BUSY"},
	{ErrTooManySessions, http.StatusServiceUnavailable, "TOO_MANY_SESSIONS"},
	{sale.ErrDuplicateProduct, http.StatusUnprocessableEntity, "DUPLICATE_PRODUCT"},
	{sale.ErrExpiredProduct, http.StatusUnprocessableEntity, "EXPIRED_PRODUCT"},
	{sale.ErrStockExceeded, http.StatusUnprocessableEntity, "STOCK_EXCEEDED"},
	{sale.ErrProductInactive, http.StatusUnprocessableEntity, "PRODUCT_INACTIVE"},
	{product.ErrNotFound, http.StatusUnprocessableEntity, "PRODUCT_NOT_FOUND"},
	{sale.ErrNegativeDiscount, http.StatusUnprocessableEntity, "NEGATIVE_DISCOUNT"},
	{sale.ErrRowOutOfRange, http.StatusUnprocessableEntity, "ROW_OUT_OF_RANGE"},
	{sale.ErrLastRow, http.StatusUnprocessableEntity, "LAST_ROW"},
	{sale.ErrInvalidPolicy, http.StatusBadRequest, "BAD_REQUEST"},
	{sale.ErrEmptyOrder, http.StatusUnprocessableEntity, "EMPTY_ORDER"},
	{sale.ErrInvalidLines, http.StatusUnprocessableEntity, "INVALID_LINES"},
	{sale.ErrWrongStep, http.StatusConflict, "WRONG_STEP"},
	{sale.ErrSubmitted, http.StatusConflict, "SUBMITTED"},
	{sale.ErrSaleNotFound, http.StatusNotFound, "SALE_NOT_FOUND"},
	{customer.ErrNoCustomer, http.StatusUnprocessableEntity, "NO_CUSTOMER"},
	{customer.ErrCustomerNotFound, http.StatusNotFound, "CUSTOMER_NOT_FOUND"},
	{customer.ErrDocumentRequired, http.StatusUnprocessableEntity, "DOCUMENT_REQUIRED"},
	{customer.ErrInvalidCustomer, http.StatusUnprocessableEntity, "INVALID_CUSTOMER"},
	{customer.ErrInvalidMode, http.StatusBadRequest, "INVALID_MODE"},
	{customer.ErrModeMismatch, http.StatusConflict, "MODE_MISMATCH"},
	{backend.ErrUnauthorized, http.StatusBadGateway, "UPSTREAM_UNAUTHORIZED"},
	{session.ErrNoCredentials, http.StatusServiceUnavailable, "NO_CREDENTIALS"},
}

// classify maps err to an HTTP status, a stable code, the message shown to
// the operator and optional details.
func classify(err error) (status int, code, msg string, details any) {
	// Back-office messages are shown verbatim.
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", apiErr.Message, map[string]int{"status": apiErr.StatusCode}
	}

	if errors.Is(err, backend.ErrUnavailable) {
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error(), nil
	}

	var invalidLines *sale.InvalidLinesError
	if errors.As(err, &invalidLines) {
		issues := make([]lineIssueDTO, 0, len(invalidLines.Lines))
		for _, l := range invalidLines.Lines {
			reasons := make([]string, 0, len(l.Reasons))
			for _, r := range l.Reasons {
				reasons = append(reasons, codeOf(r))
			}
			issues = append(issues, lineIssueDTO{Row: l.Row, Reasons: reasons})
		}
		details = map[string]any{"lines": issues}
	}

	var invalidFields *customer.InvalidFieldsError
	if errors.As(err, &invalidFields) {
		details = map[string]any{"fields": invalidFields.Fields}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code, err.Error(), details
		}
	}
	return http.StatusInternalServerError, "INTERNAL", "internal error", nil
}

// codeOf returns the stable code of a line or notice error.
func codeOf(err error) string {
	switch {
	case errors.Is(err, sale.ErrNoProduct):
		return "NO_PRODUCT"
	case errors.Is(err, sale.ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	}
	_, code, _, _ := classify(err)
	return code
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
