package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

// Sale statuses.
const (
	SalePending   SaleStatus = "PENDING"
	SaleSucceeded SaleStatus = "SUCCEEDED"
	SaleCancelled SaleStatus = "CANCELLED"
)

// ErrStatusFrozen is returned when a sale that already left PENDING is
// transitioned again.
var ErrStatusFrozen = errors.New("sale status can no longer change")

// DisplayName returns the label shown on receipts and reports.
func (s SaleStatus) DisplayName() string {
	switch s {
	case SalePending:
		return "Pending"
	case SaleSucceeded:
		return "Succeeded"
	case SaleCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Sale records one purchase. Item is a snapshot taken when the sale was
// created and is not affected by later inventory changes.
type Sale struct {
	ID        string     `json:"id"`
	Item      Item       `json:"item"`
	Quantity  int        `json:"quantity"`
	Status    SaleStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewSale creates a pending sale for quantity units of item.
func NewSale(id string, item Item, quantity int, at time.Time) Sale {
	return Sale{
		ID:        id,
		Item:      item,
		Quantity:  quantity,
		Status:    SalePending,
		CreatedAt: at,
	}
}

// Total is the unit price times the quantity.
func (s Sale) Total() decimal.Decimal {
	return s.Item.Price.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// Complete moves a pending sale to SUCCEEDED.
func (s *Sale) Complete() error {
	return s.transition(SaleSucceeded)
}

// Cancel moves a pending sale to CANCELLED.
func (s *Sale) Cancel() error {
	return s.transition(SaleCancelled)
}

func (s *Sale) transition(to SaleStatus) error {
	if s.Status != SalePending {
		return ErrStatusFrozen
	}
	s.Status = to
	return nil
}
