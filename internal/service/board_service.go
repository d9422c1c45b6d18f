// Package service implements the operations exposed to the UI layer:
// publishing a bill, reading a board, claiming and releasing items, and
// computing allocations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabscan/tabscan/internal/calculator"
	"github.com/tabscan/tabscan/internal/eventlog"
	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/money"
	"github.com/tabscan/tabscan/internal/shareid"
	"github.com/tabscan/tabscan/internal/storage"
)

// Notifier receives item ownership changes for fan-out to live viewers.
// Implementations must not block.
type Notifier interface {
	ItemChanged(transactionID string, item models.Item)
}

// maxShareIDAttempts bounds collision retries when minting a share id.
const maxShareIDAttempts = 5

// BoardService publishes drafts and serves boards and allocations.
type BoardService struct {
	store  storage.Store
	events *eventlog.Worker
}

// NewBoardService creates a BoardService. events may be nil to disable the
// event log.
func NewBoardService(store storage.Store, events *eventlog.Worker) *BoardService {
	return &BoardService{store: store, events: events}
}

// Publish validates a draft, expands multi-quantity items into claimable
// units, mints a collision-checked share id and persists the transaction
// atomically. Nothing is persisted when validation fails.
func (s *BoardService) Publish(ctx context.Context, draft *models.DraftBill) (*models.Transaction, error) {
	if err := draft.Validate(); err != nil {
		slog.Warn("publish rejected", "vendor", draft.VendorName, "error", err)
		return nil, err
	}

	id, err := s.mintShareID(ctx)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:            id,
		VendorName:    draft.VendorName,
		Title:         draft.Title,
		Subtotal:      money.Round2(draft.Subtotal),
		Tax:           money.Round2(draft.TaxAmount()),
		Tip:           money.Round2(draft.Tip),
		Total:         money.Round2(draft.Total),
		PaymentMethod: draft.PaymentMethod,
		PaymentHandle: draft.PaymentHandle,
		Status:        models.StatusPublished,
		Items:         expandItems(id, draft.Items),
	}
	if t.Title == "" {
		t.Title = generateTitle(t.VendorName)
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		slog.Error("Publish failed", "share_id", id, "error", err)
		return nil, err
	}

	if s.events != nil {
		s.events.Log(eventlog.NewEvent(
			eventlog.WithType("bill.published"),
			eventlog.WithData(map[string]string{
				"share_id": t.ID,
				"vendor":   t.VendorName,
				"total":    t.Total.String(),
			}),
		))
	}
	slog.Info("bill published", "share_id", t.ID, "vendor", t.VendorName, "items", len(t.Items))

	return t, nil
}

// GetBoard retrieves a published transaction by share id.
func (s *BoardService) GetBoard(ctx context.Context, shareID string) (*models.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, shareID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetAllocations computes the per-participant breakdown from the current
// ownership snapshot.
func (s *BoardService) GetAllocations(ctx context.Context, shareID string) (map[string]calculator.Allocation, error) {
	t, err := s.store.GetTransaction(ctx, shareID)
	if err != nil {
		return nil, err
	}
	return calculator.ComputeAllocations(t.Items, t.Tax, t.Tip), nil
}

// mintShareID generates a share token, verifies it is unused and retries on
// collision. Collisions never surface to the caller.
func (s *BoardService) mintShareID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxShareIDAttempts; attempt++ {
		id, err := shareid.New()
		if err != nil {
			return "", err
		}
		exists, err := s.store.TransactionExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		slog.Warn("share id collision, retrying", "attempt", attempt+1)
	}
	return "", fmt.Errorf("could not mint a unique share id after %d attempts", maxShareIDAttempts)
}

// expandItems turns draft items into claimable units. A quantity of n
// becomes n single-unit items whose costs split the original cost exactly,
// remainder cents on the first units.
func expandItems(transactionID string, drafts []models.DraftItem) []models.Item {
	var items []models.Item
	for _, d := range drafts {
		qty := d.Quantity
		if qty <= 1 {
			items = append(items, models.Item{
				TransactionID: transactionID,
				Name:          d.Name,
				Cost:          money.Round2(d.Cost),
				Quantity:      1,
			})
			continue
		}
		for _, cost := range money.SplitEven(d.Cost, qty) {
			items = append(items, models.Item{
				TransactionID: transactionID,
				Name:          d.Name,
				Cost:          cost,
				Quantity:      1,
			})
		}
	}
	return items
}

// generateTitle creates an auto-generated title from the vendor and date.
func generateTitle(vendor string) string {
	date := time.Now().Format("Jan 2, 2006")
	if vendor == "" {
		return fmt.Sprintf("Bill - %s", date)
	}
	return fmt.Sprintf("%s - %s", vendor, date)
}
