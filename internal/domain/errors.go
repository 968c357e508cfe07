package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes. Handlers map them onto HTTP statuses.
const (
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	EEMPTYCART    = "empty_cart"
	ETXFAILED     = "transaction_failed"
	ECONFLICT     = "conflict"
	EUNAUTHORIZED = "unauthorized"
	EINTERNAL     = "internal"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrEmptyCart is returned when checkout sees a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock is returned when a guarded stock decrement matches no row.
	ErrInsufficientStock = errors.New("insufficient stock")
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is an application error carrying a machine-readable code.
// Fields holds per-field messages for validation failures.
type Error struct {
	Code    string
	Op      string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, formatFields(e.Fields))
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the code from err. Bare sentinels are mapped to their
// codes; anything else is internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ENOTFOUND
	case errors.Is(err, ErrEmptyCart):
		return EEMPTYCART
	case errors.Is(err, ErrAlreadyExists):
		return ECONFLICT
	}
	return EINTERNAL
}

// ErrorMessage returns a message safe to show to clients.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return internalMessage
		}
		return e.Message
	}
	switch ErrorCode(err) {
	case ENOTFOUND:
		return "Resource not found."
	case EEMPTYCART:
		return "Your cart is empty."
	case ECONFLICT:
		return "Resource already exists."
	}
	return internalMessage
}

// ErrorFields returns field-level validation messages, if any.
func ErrorFields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code and operation to err. Returns nil for a nil err.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Validation builds a validation failure with field-level detail.
func Validation(op string, fields map[string]string) error {
	return &Error{Code: EINVALID, Op: op, Message: "The given data was invalid.", Fields: fields}
}

// Invalid builds a validation failure for a single field.
func Invalid(op, field, message string) error {
	return Validation(op, map[string]string{field: message})
}

// NotFound builds a not-found error that still matches ErrNotFound.
func NotFound(op, resource string, id any) error {
	return &Error{Code: ENOTFOUND, Op: op, Message: fmt.Sprintf("%s not found: %v", resource, id), Err: ErrNotFound}
}

// EmptyCart builds the checkout error for a cart without lines.
func EmptyCart(op string) error {
	return &Error{Code: EEMPTYCART, Op: op, Message: "Your cart is empty.", Err: ErrEmptyCart}
}

// TransactionFailed reports a rolled-back unit of work. The cause stays
// available for logging; clients see a generic message.
func TransactionFailed(op string, err error) error {
	return &Error{Code: ETXFAILED, Op: op, Message: "The order could not be placed. Please try again.", Err: err}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message, Err: ErrAlreadyExists}
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, ", ")
}
