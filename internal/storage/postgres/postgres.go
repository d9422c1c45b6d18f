// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface, for deployments that outgrow a single SQLite file.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/money"
	"github.com/tabscan/tabscan/internal/storage"
)

// Ensure PostgresStore implements storage.Store
var _ storage.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    vendor_name TEXT NOT NULL,
    title TEXT NOT NULL,
    subtotal_cents BIGINT NOT NULL,
    tax_cents BIGINT NOT NULL,
    tip_cents BIGINT NOT NULL,
    total_cents BIGINT NOT NULL,
    payment_method TEXT NOT NULL DEFAULT '',
    payment_handle TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    cost_cents BIGINT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 1,
    owner_nickname TEXT,
    version BIGINT NOT NULL DEFAULT 0,
    position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    event_data TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_transaction_id ON items(transaction_id);
CREATE INDEX IF NOT EXISTS idx_items_owner ON items(transaction_id, owner_nickname);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// PostgresStore implements storage.Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// New connects to the database described by the connection string, verifies
// the connection and ensures the schema exists.
func New(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreateTransaction persists a transaction and its items atomically.
func (s *PostgresStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
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
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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
func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t := &models.Transaction{}
	var subtotal, tax, tip, total int64
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, vendor_name, title, subtotal_cents, tax_cents, tip_cents, total_cents,
		        payment_method, payment_handle, status, created_at
		 FROM transactions WHERE id = $1`,
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
func (s *PostgresStore) TransactionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM transactions WHERE id = $1", id,
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
func (s *PostgresStore) ListItems(ctx context.Context, transactionID string) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, name, cost_cents, quantity, owner_nickname, version
		 FROM items WHERE transaction_id = $1 ORDER BY position`,
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
// equals expected. IS NOT DISTINCT FROM treats NULL like a value, covering
// the unclaimed case in the same guarded UPDATE. The version bump in the
// same statement orders the change relative to every other owner write.
func (s *PostgresStore) CompareAndSetOwner(ctx context.Context, itemID, expected, newOwner string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE items SET owner_nickname = $1, version = version + 1
		 WHERE id = $2 AND owner_nickname IS NOT DISTINCT FROM $3
		 RETURNING version`,
		ownerValue(newOwner), itemID, ownerValue(expected),
	).Scan(&version)
	if err == nil {
		return version, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to set owner: %w", err)
	}

	exists := 0
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM items WHERE id = $1", itemID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check item: %w", err)
	}
	return 0, storage.ErrConflict
}

func ownerValue(owner string) any {
	if owner == "" {
		return nil
	}
	return owner
}
