package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tabscan/tabscan/internal/money"
)

// ErrValidation is the base error for malformed or financially inconsistent
// drafts. Every validation failure wraps it, so callers can match the whole
// class with errors.Is.
var ErrValidation = errors.New("invalid bill")

// DraftBill is the organizer-facing bill before publish. Its shape mirrors
// what the OCR extraction step produces: vendor, items, subtotal and total
// are required; tax may be absent and is then derived as total - subtotal.
type DraftBill struct {
	VendorName string      `json:"vendor_name"`
	Title      string      `json:"title,omitempty"`
	Items      []DraftItem `json:"items"`

	Subtotal decimal.Decimal  `json:"subtotal"`
	Tax      *decimal.Decimal `json:"tax,omitempty"`
	Tip      decimal.Decimal  `json:"tip"`
	Total    decimal.Decimal  `json:"total"`

	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentHandle string `json:"payment_handle,omitempty"`
}

// DraftItem is a line item on a draft. Quantity > 1 represents identical
// units that are expanded into separate claimable items at publish.
type DraftItem struct {
	Name     string          `json:"name"`
	Cost     decimal.Decimal `json:"cost"`
	Quantity int             `json:"quantity,omitempty"`
}

// TaxAmount returns the draft's tax, deriving it from total - subtotal when
// the extraction did not report one.
func (d *DraftBill) TaxAmount() decimal.Decimal {
	if d.Tax != nil {
		return *d.Tax
	}
	return d.Total.Sub(d.Subtotal)
}

// Validate checks the draft for the conditions that block publish.
// All returned errors wrap ErrValidation.
func (d *DraftBill) Validate() error {
	if d.VendorName == "" {
		return fmt.Errorf("%w: vendor name is required", ErrValidation)
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	if d.Subtotal.IsNegative() {
		return fmt.Errorf("%w: subtotal must be non-negative", ErrValidation)
	}
	if d.Total.IsNegative() {
		return fmt.Errorf("%w: total must be non-negative", ErrValidation)
	}
	tax := d.TaxAmount()
	if tax.IsNegative() {
		return fmt.Errorf("%w: tax must be non-negative", ErrValidation)
	}
	if d.Tip.IsNegative() {
		return fmt.Errorf("%w: tip must be non-negative", ErrValidation)
	}
	if !money.WithinOneCent(d.Total, d.Subtotal.Add(tax)) {
		return fmt.Errorf("%w: total %s does not equal subtotal %s + tax %s",
			ErrValidation, d.Total, d.Subtotal, tax)
	}

	itemSum := decimal.Zero
	for i, item := range d.Items {
		if item.Name == "" {
			return fmt.Errorf("%w: item %d has no name", ErrValidation, i+1)
		}
		if item.Cost.IsNegative() {
			return fmt.Errorf("%w: item %q has negative cost", ErrValidation, item.Name)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("%w: item %q has negative quantity", ErrValidation, item.Name)
		}
		itemSum = itemSum.Add(item.Cost)
	}
	if !money.WithinOneCent(itemSum, d.Subtotal) {
		return fmt.Errorf("%w: item costs sum to %s, subtotal is %s",
			ErrValidation, itemSum, d.Subtotal)
	}
	return nil
}
