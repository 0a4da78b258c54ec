// Package apperr defines the error kinds surfaced to users and how they map onto messages and
// HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var (
	ErrAuthentication    = errors.New("please log in")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("invalid input")
	ErrExternalService   = errors.New("external service failed")
)

const genericMessage = "Something went wrong. Please try again."

// InsufficientStockError reports a stock or quantity shortfall for one item.
type InsufficientStockError struct {
	Item      string
	Required  float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %s, available %s",
		e.Item, formatQuantity(e.Required), formatQuantity(e.Available))
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InsufficientStock builds an InsufficientStockError.
func InsufficientStock(item string, required, available float64) error {
	return &InsufficientStockError{Item: item, Required: required, Available: available}
}

// NotFound wraps ErrNotFound with the missing entity and id.
func NotFound(entity, id string) error {
	if id == "" {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return fmt.Errorf("%s %s %w", entity, id, ErrNotFound)
}

// Validation wraps ErrValidation with a message meant for the user.
func Validation(message string) error {
	return &userError{kind: ErrValidation, message: message}
}

// External wraps a provider failure as ErrExternalService.
func External(message string, err error) error {
	return &userError{kind: ErrExternalService, message: message, cause: err}
}

type userError struct {
	kind    error
	message string
	cause   error
}

func (e *userError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *userError) Is(target error) bool {
	return target == e.kind
}

func (e *userError) Unwrap() error {
	return e.cause
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var stock *InsufficientStockError
	if errors.As(err, &stock) {
		return fmt.Sprintf("Insufficient stock for %s: required %s, available %s.",
			stock.Item, formatQuantity(stock.Required), formatQuantity(stock.Available))
	}

	var user *userError
	if errors.As(err, &user) {
		return user.message
	}

	switch {
	case errors.Is(err, ErrAuthentication):
		return "Please log in to continue."
	case errors.Is(err, ErrNotFound):
		return capitalize(err.Error()) + "."
	case errors.Is(err, ErrExternalService):
		return "The suggestion service is unavailable right now."
	default:
		return genericMessage
	}
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
