package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	// StatusDraft marks a bill still editable by the organizer. Drafts
	// live on the organizer's device until publish and are never
	// persisted here; every stored transaction is StatusPublished. The
	// constant names the pre-publish half of the lifecycle for clients.
	StatusDraft Status = "draft"

	// StatusPublished marks a bill anchored to a shareable id. A published
	// transaction is immutable except for item ownership.
	StatusPublished Status = "published"
)

// Transaction represents one published bill and its claimable items.
type Transaction struct {
	// ID is the opaque shareable identifier minted at publish time.
	// It is globally unique and immutable.
	ID string `json:"id"`

	// VendorName is the business name from the receipt.
	VendorName string `json:"vendor_name"`

	// Title is a human-readable name, auto-generated from the vendor and
	// date when the organizer does not provide one.
	Title string `json:"title"`

	// Subtotal is the sum of all item costs at publish time (pre-tax, pre-tip).
	Subtotal decimal.Decimal `json:"subtotal"`

	// Tax is the tax amount, non-negative.
	Tax decimal.Decimal `json:"tax"`

	// Tip is the tip amount, non-negative, possibly zero. Tip is kept
	// outside Total and added only in per-participant allocations.
	Tip decimal.Decimal `json:"tip"`

	// Total is the post-tax amount: Subtotal + Tax, within one cent.
	Total decimal.Decimal `json:"total"`

	// PaymentMethod and PaymentHandle are presentational fields shown on
	// the board (e.g. "venmo", "@organizer"). No computation depends on them.
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentHandle string `json:"payment_handle,omitempty"`

	// Status is draft or published. Publish happens exactly once.
	Status Status `json:"status"`

	// Items are the claimable units, in creation order.
	Items []Item `json:"items"`

	// CreatedAt is the Unix timestamp when the transaction was created.
	CreatedAt int64 `json:"created_at"`
}

// Item represents a single claimable unit on a transaction.
// After publish, only Owner may change, exclusively through the store's
// compare-and-set primitive.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string `json:"id"`

	// TransactionID is the owning transaction's shareable id.
	TransactionID string `json:"transaction_id"`

	// Name is the item description from the receipt.
	Name string `json:"name"`

	// Cost is the item's pre-tax, pre-tip contribution.
	Cost decimal.Decimal `json:"cost"`

	// Quantity is kept for provenance. Draft items with quantity > 1 are
	// expanded into single-unit items at publish, so published items
	// always carry quantity 1.
	Quantity int `json:"quantity"`

	// Owner is the normalized nickname of the claimant, or "" when the
	// item is unclaimed.
	Owner string `json:"owner,omitempty"`

	// Version counts ownership changes. The store bumps it in the same
	// statement that changes Owner, so a higher version always reflects a
	// later commit. Change events carry it so receivers can discard
	// notifications that arrive behind a newer one.
	Version int64 `json:"version"`
}

// Claimed reports whether the item currently has an owner.
func (i Item) Claimed() bool {
	return i.Owner != ""
}

// NormalizeNickname produces the canonical case-insensitive form of a
// nickname. Two spellings that normalize equal are the same identity for
// ownership and allocation.
func NormalizeNickname(nickname string) string {
	return strings.ToLower(strings.TrimSpace(nickname))
}
