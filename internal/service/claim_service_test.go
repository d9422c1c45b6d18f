package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/storage"
	"github.com/tabscan/tabscan/internal/storage/sqlite"
)

// captureNotifier records broadcast items for assertions.
type captureNotifier struct {
	mu    sync.Mutex
	items []models.Item
}

func (c *captureNotifier) ItemChanged(_ string, item models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "tabscan-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		os.Remove(tmpFile.Name())
	})
	return store
}

func publishTestBill(t *testing.T, store storage.Store) *models.Transaction {
	t.Helper()

	board := NewBoardService(store, nil)
	tax := decimal.RequireFromString("6.00")
	published, err := board.Publish(context.Background(), &models.DraftBill{
		VendorName: "Diner",
		Items: []models.DraftItem{
			{Name: "Burger", Cost: decimal.RequireFromString("10.00")},
			{Name: "Fries", Cost: decimal.RequireFromString("20.00")},
			{Name: "Shake", Cost: decimal.RequireFromString("30.00")},
		},
		Subtotal: decimal.RequireFromString("60.00"),
		Tax:      &tax,
		Tip:      decimal.RequireFromString("12.00"),
		Total:    decimal.RequireFromString("66.00"),
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	return published
}

func TestClaimItems(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	notifier := &captureNotifier{}
	claims := NewClaimService(store, notifier, nil)
	ctx := context.Background()

	ids := []string{bill.Items[0].ID, bill.Items[1].ID}

	result, err := claims.ClaimItems(ctx, bill.ID, "  Alice ", ids)
	if err != nil {
		t.Fatalf("ClaimItems failed: %v", err)
	}
	if len(result.Claimed) != 2 || len(result.Rejected) != 0 {
		t.Fatalf("claimed=%v rejected=%v, want both claimed", result.Claimed, result.Rejected)
	}

	// Ownership lands normalized.
	items, _ := store.ListItems(ctx, bill.ID)
	if items[0].Owner != "alice" {
		t.Errorf("owner = %q, want normalized %q", items[0].Owner, "alice")
	}
	if notifier.count() != 2 {
		t.Errorf("broadcast %d item changes, want 2", notifier.count())
	}
	// Broadcast items carry the committed version so receivers can order them.
	notifier.mu.Lock()
	for _, item := range notifier.items {
		if item.Version != 1 {
			t.Errorf("broadcast item %s version = %d, want 1", item.ID, item.Version)
		}
	}
	notifier.mu.Unlock()
}

func TestClaimItemsIdempotent(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	claims := NewClaimService(store, nil, nil)
	ctx := context.Background()

	ids := []string{bill.Items[0].ID}
	if _, err := claims.ClaimItems(ctx, bill.ID, "alice", ids); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	second, err := claims.ClaimItems(ctx, bill.ID, "ALICE", ids)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if len(second.Claimed) != 1 || len(second.Rejected) != 0 {
		t.Errorf("re-claim: claimed=%v rejected=%v, want idempotent success", second.Claimed, second.Rejected)
	}
}

func TestClaimItemsPartitionsBatch(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	claims := NewClaimService(store, nil, nil)
	ctx := context.Background()

	// bob takes the shake first
	if _, err := claims.ClaimItems(ctx, bill.ID, "bob", []string{bill.Items[2].ID}); err != nil {
		t.Fatalf("setup claim failed: %v", err)
	}

	ids := []string{bill.Items[0].ID, bill.Items[2].ID, "unknown-item"}
	result, err := claims.ClaimItems(ctx, bill.ID, "alice", ids)
	if err != nil {
		t.Fatalf("ClaimItems failed: %v", err)
	}

	if len(result.Claimed) != 1 || result.Claimed[0] != bill.Items[0].ID {
		t.Errorf("claimed = %v, want just %s", result.Claimed, bill.Items[0].ID)
	}
	if len(result.Rejected) != 2 {
		t.Errorf("rejected = %v, want bob's item and the unknown id", result.Rejected)
	}

	// Union of claimed and rejected covers the batch, disjointly.
	outcome := make(map[string]int)
	for _, id := range result.Claimed {
		outcome[id]++
	}
	for _, id := range result.Rejected {
		outcome[id]++
	}
	for _, id := range ids {
		if outcome[id] != 1 {
			t.Errorf("item %s appears %d times across claimed+rejected, want exactly once", id, outcome[id])
		}
	}

	// bob keeps his item
	items, _ := store.ListItems(ctx, bill.ID)
	if items[2].Owner != "bob" {
		t.Errorf("shake owner = %q, want bob", items[2].Owner)
	}
}

func TestClaimItemsLosesRaceGracefully(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	claims := NewClaimService(store, nil, nil)
	ctx := context.Background()
	itemID := bill.Items[0].ID

	// carol's write lands between alice's read and her compare-and-set.
	// Simulate by claiming through the store after the service has read:
	// the store-level guard is what closes the window, so exercise it
	// directly in both arrival orders.
	if _, err := store.CompareAndSetOwner(ctx, itemID, "", "carol"); err != nil {
		t.Fatalf("carol's claim failed: %v", err)
	}

	result, err := claims.ClaimItems(ctx, bill.ID, "alice", []string{itemID})
	if err != nil {
		t.Fatalf("ClaimItems failed: %v", err)
	}
	if len(result.Claimed) != 0 || len(result.Rejected) != 1 {
		t.Errorf("claimed=%v rejected=%v, want rejection", result.Claimed, result.Rejected)
	}

	items, _ := store.ListItems(ctx, bill.ID)
	if items[0].Owner != "carol" {
		t.Errorf("owner = %q, want carol to keep the item", items[0].Owner)
	}
}

func TestClaimItemsEmptyNickname(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	claims := NewClaimService(store, nil, nil)

	_, err := claims.ClaimItems(context.Background(), bill.ID, "   ", []string{bill.Items[0].ID})
	if err == nil {
		t.Fatal("expected validation error for blank nickname")
	}
}

func TestClaimItemsUnknownTransaction(t *testing.T) {
	store := newTestStore(t)
	claims := NewClaimService(store, nil, nil)

	_, err := claims.ClaimItems(context.Background(), "no-such-share", "alice", []string{"x"})
	if err == nil {
		t.Fatal("expected error for unknown share id")
	}
}

func TestReleaseItems(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	notifier := &captureNotifier{}
	claims := NewClaimService(store, notifier, nil)
	ctx := context.Background()

	ids := []string{bill.Items[0].ID, bill.Items[1].ID}
	if _, err := claims.ClaimItems(ctx, bill.ID, "alice", ids); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	released, err := claims.ReleaseItems(ctx, bill.ID, "ALICE")
	if err != nil {
		t.Fatalf("ReleaseItems failed: %v", err)
	}
	if released != 2 {
		t.Errorf("released = %d, want 2", released)
	}

	items, _ := store.ListItems(ctx, bill.ID)
	for _, item := range items {
		if item.Owner != "" {
			t.Errorf("item %s still owned by %q", item.ID, item.Owner)
		}
	}
	// The release notifications are versioned after the claim ones.
	notifier.mu.Lock()
	for _, item := range notifier.items[2:] {
		if item.Version != 2 {
			t.Errorf("release broadcast for %s version = %d, want 2", item.ID, item.Version)
		}
	}
	notifier.mu.Unlock()

	// Releasing again is a no-op.
	released, err = claims.ReleaseItems(ctx, bill.ID, "alice")
	if err != nil {
		t.Fatalf("second ReleaseItems failed: %v", err)
	}
	if released != 0 {
		t.Errorf("second release = %d, want 0", released)
	}
}

func TestReleaseThenReclaimRoundTrip(t *testing.T) {
	store := newTestStore(t)
	bill := publishTestBill(t, store)
	claims := NewClaimService(store, nil, nil)
	ctx := context.Background()

	ids := []string{bill.Items[0].ID, bill.Items[2].ID}
	if _, err := claims.ClaimItems(ctx, bill.ID, "alice", ids); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	before, _ := store.ListItems(ctx, bill.ID)

	if _, err := claims.ReleaseItems(ctx, bill.ID, "alice"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	result, err := claims.ClaimItems(ctx, bill.ID, "alice", ids)
	if err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if len(result.Claimed) != 2 {
		t.Fatalf("re-claim claimed %d items, want 2", len(result.Claimed))
	}

	after, _ := store.ListItems(ctx, bill.ID)
	for i := range before {
		if before[i].Owner != after[i].Owner {
			t.Errorf("item %s owner %q != %q after release/re-claim", before[i].ID, before[i].Owner, after[i].Owner)
		}
	}
}

func TestConcurrentClaimEitherOrder(t *testing.T) {
	// bob and carol race for the same item. Whatever the arrival order,
	// exactly one of them owns it afterwards and the loser sees a
	// rejection, not an error.
	for _, first := range []string{"bob", "carol"} {
		second := "carol"
		if first == "carol" {
			second = "bob"
		}

		store := newTestStore(t)
		bill := publishTestBill(t, store)
		claims := NewClaimService(store, nil, nil)
		ctx := context.Background()
		itemID := bill.Items[0].ID

		win, err := claims.ClaimItems(ctx, bill.ID, first, []string{itemID})
		if err != nil {
			t.Fatalf("%s claim failed: %v", first, err)
		}
		lose, err := claims.ClaimItems(ctx, bill.ID, second, []string{itemID})
		if err != nil {
			t.Fatalf("%s claim failed: %v", second, err)
		}

		if len(win.Claimed) != 1 {
			t.Errorf("%s should have claimed the item", first)
		}
		if len(lose.Rejected) != 1 {
			t.Errorf("%s should have been rejected", second)
		}

		items, _ := store.ListItems(ctx, bill.ID)
		if items[0].Owner != first {
			t.Errorf("owner = %q, want %q", items[0].Owner, first)
		}
	}
}
