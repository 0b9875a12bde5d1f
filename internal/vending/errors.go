package vending

import (
	"errors"

	"github.com/erazemk/avtomat/internal/model"
)

// Domain errors returned by Machine. Callers match them with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicateID  = errors.New("duplicate item id")
	ErrNotFound     = errors.New("item not found")
	ErrOutOfStock   = errors.New("item out of stock")

	// ErrNotPersisted means the change was applied in memory but writing the
	// inventory to the store failed.
	ErrNotPersisted = errors.New("change not persisted")
)

// Message returns a human-readable description of err that is safe to show
// to kiosk users. It never includes internal detail such as file paths.
func Message(err error) string {
	var verr *model.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Invalid " + verr.Field + ": " + verr.Message + "."
	case errors.Is(err, ErrInvalidInput):
		return "The request is missing required product data."
	case errors.Is(err, ErrDuplicateID):
		return "A product with this ID already exists."
	case errors.Is(err, ErrNotFound):
		return "The product was not found in the inventory."
	case errors.Is(err, ErrOutOfStock):
		return "The product is sold out."
	case errors.Is(err, ErrNotPersisted):
		return "The change was applied but could not be saved; it may be lost on restart."
	}
	return "An unexpected error occurred."
}
