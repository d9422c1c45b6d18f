// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/tabscan/tabscan/internal/models"
)

var (
	// ErrNotFound is returned when a transaction or item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by CompareAndSetOwner when the stored owner
	// differs from the expected one. The caller must re-read before retrying.
	ErrConflict = errors.New("owner changed")
)

// Store defines the interface for ledger storage operations. This
// abstraction allows swapping backends (SQLite, PostgreSQL) without
// changing the service layer.
type Store interface {
	// CreateTransaction persists a transaction and all of its items
	// atomically. Item ids are populated if unset. Fails if the
	// transaction id already exists.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction retrieves a transaction with its items in creation
	// order. Returns ErrNotFound for an unknown id.
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)

	// TransactionExists reports whether a transaction id is taken.
	TransactionExists(ctx context.Context, id string) (bool, error)

	// ListItems returns the transaction's items in creation order,
	// stable across reads.
	ListItems(ctx context.Context, transactionID string) ([]models.Item, error)

	// CompareAndSetOwner atomically sets an item's owner, but only if the
	// current stored owner equals expected ("" means unclaimed). It is the
	// sole ownership mutation primitive and bumps the item's version in
	// the same statement, returning the new version. Returns ErrConflict
	// if another writer got there first, ErrNotFound for an unknown item.
	CompareAndSetOwner(ctx context.Context, itemID, expected, newOwner string) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
