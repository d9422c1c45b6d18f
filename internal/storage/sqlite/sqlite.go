// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/money"
	"github.com/tabscan/tabscan/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTransaction persists a transaction and its items in one database
// transaction.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, vendor_name, title, subtotal_cents, tax_cents, tip_cents, total_cents,
		  payment_method, payment_handle, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VendorName, t.Title,
		money.Cents(t.Subtotal), money.Cents(t.Tax), money.Cents(t.Tip), money.Cents(t.Total),
		t.PaymentMethod, t.PaymentHandle, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i := range t.Items {
		item := &t.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.TransactionID = t.ID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, transaction_id, name, cost_cents, quantity, owner_nickname, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, t.ID, item.Name, money.Cents(item.Cost), item.Quantity, ownerValue(item.Owner), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTransaction retrieves a transaction by id, including all items in
// creation order.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t := &models.Transaction{}
	var subtotal, tax, tip, total int64
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, vendor_name, title, subtotal_cents, tax_cents, tip_cents, total_cents,
		        payment_method, payment_handle, status, created_at
		 FROM transactions WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.VendorName, &t.Title, &subtotal, &tax, &tip, &total,
		&t.PaymentMethod, &t.PaymentHandle, &status, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	t.Subtotal = money.FromCents(subtotal)
	t.Tax = money.FromCents(tax)
	t.Tip = money.FromCents(tip)
	t.Total = money.FromCents(total)
	t.Status = models.Status(status)

	items, err := s.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items

	return t, nil
}

// TransactionExists reports whether the transaction id is taken.
func (s *SQLiteStore) TransactionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM transactions WHERE id = ?", id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return true, nil
}

// ListItems returns the transaction's items ordered by creation position.
func (s *SQLiteStore) ListItems(ctx context.Context, transactionID string) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, name, cost_cents, quantity, owner_nickname, version
		 FROM items WHERE transaction_id = ? ORDER BY position`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		var cost int64
		var owner sql.NullString
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.Name, &cost, &item.Quantity, &owner, &item.Version); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Cost = money.FromCents(cost)
		item.Owner = owner.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// CompareAndSetOwner updates the item's owner only if the stored owner still
// equals expected. SQLite's IS operator treats two NULLs as equal, which
// makes the unclaimed case a single guarded UPDATE. The version bump in the
// same statement orders the change relative to every other owner write, and
// RETURNING hands it back without a second read.
func (s *SQLiteStore) CompareAndSetOwner(ctx context.Context, itemID, expected, newOwner string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE items SET owner_nickname = ?, version = version + 1
		 WHERE id = ? AND owner_nickname IS ?
		 RETURNING version`,
		ownerValue(newOwner), itemID, ownerValue(expected),
	).Scan(&version)
	if err == nil {
		return version, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to set owner: %w", err)
	}

	// The guarded update matched nothing: either the item is gone or
	// another writer changed the owner between our read and this write.
	exists := 0
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM items WHERE id = ?", itemID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check item: %w", err)
	}
	return 0, storage.ErrConflict
}

// ownerValue maps the empty nickname to NULL so unclaimed items carry no owner.
func ownerValue(owner string) any {
	if owner == "" {
		return nil
	}
	return owner
}
