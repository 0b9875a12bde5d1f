package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a sellable product and its stock counter.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	ImageRef string          `json:"image_ref,omitempty"`
}

// ValidationError reports the first invalid field of an item.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the fields an item must carry before it enters inventory.
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return &ValidationError{Field: "id", Message: "item id must not be empty"}
	}
	if strings.TrimSpace(i.Name) == "" {
		return &ValidationError{Field: "name", Message: "item name must not be empty"}
	}
	if i.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if i.Stock < 0 {
		return &ValidationError{Field: "stock", Message: "stock must not be negative"}
	}
	return nil
}

// Decrement removes n units from stock. Stock never drops below zero.
func (i *Item) Decrement(n int) error {
	if n < 0 {
		return fmt.Errorf("cannot remove a negative quantity (%d)", n)
	}
	if n > i.Stock {
		return fmt.Errorf("requested %d exceeds available stock %d", n, i.Stock)
	}
	i.Stock -= n
	return nil
}

// InStock reports whether at least one unit is available.
func (i Item) InStock() bool {
	return i.Stock > 0
}
