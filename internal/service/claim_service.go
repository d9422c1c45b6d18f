package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tabscan/tabscan/internal/eventlog"
	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/storage"
)

// ClaimService turns claim and release gestures into conflict-safe ownership
// changes. It uses per-item optimistic concurrency: contention between
// distinct humans picking distinct items is rare, and partial success beats
// serializing all claim traffic for a bill.
type ClaimService struct {
	store    storage.Store
	notifier Notifier
	events   *eventlog.Worker
}

// NewClaimService creates a ClaimService. notifier and events may be nil.
func NewClaimService(store storage.Store, notifier Notifier, events *eventlog.Worker) *ClaimService {
	return &ClaimService{store: store, notifier: notifier, events: events}
}

// ClaimItems claims the given items for nickname. Items owned by someone
// else, items that lose the compare-and-set race and unknown ids land in
// Rejected; everything else in Claimed. A fully rejected batch is a normal
// result, not an error. Each item's outcome is independent; there is no
// rollback of earlier successes.
func (s *ClaimService) ClaimItems(ctx context.Context, transactionID, nickname string, itemIDs []string) (*models.ClaimResult, error) {
	nick := models.NormalizeNickname(nickname)
	if nick == "" {
		return nil, fmt.Errorf("%w: nickname is required", models.ErrValidation)
	}

	// Fresh read of current ownership, never a cached view.
	current, err := s.store.ListItems(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		if _, err := s.store.GetTransaction(ctx, transactionID); err != nil {
			return nil, err
		}
	}
	byID := make(map[string]models.Item, len(current))
	for _, item := range current {
		byID[item.ID] = item
	}

	result := &models.ClaimResult{Claimed: []string{}, Rejected: []string{}}
	seen := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		item, ok := byID[id]
		switch {
		case !ok:
			result.Rejected = append(result.Rejected, id)

		case item.Owner == nick:
			// Already ours; claiming again is a no-op.
			result.Claimed = append(result.Claimed, id)

		case item.Owner != "":
			result.Rejected = append(result.Rejected, id)

		default:
			version, err := s.store.CompareAndSetOwner(ctx, id, "", nick)
			if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
				// Another writer won the race for this one item.
				result.Rejected = append(result.Rejected, id)
				continue
			}
			if err != nil {
				return nil, err
			}
			result.Claimed = append(result.Claimed, id)
			item.Owner = nick
			item.Version = version
			s.notifyItemChanged(transactionID, item)
		}
	}

	if s.events != nil && len(result.Claimed) > 0 {
		s.events.Log(eventlog.NewEvent(
			eventlog.WithType("item.claimed"),
			eventlog.WithData(map[string]any{
				"share_id": transactionID,
				"nickname": nick,
				"items":    result.Claimed,
			}),
		))
	}
	slog.Info("claim batch processed",
		"share_id", transactionID,
		"nickname", nick,
		"claimed", len(result.Claimed),
		"rejected", len(result.Rejected),
	)

	return result, nil
}

// ReleaseItems sets every item currently owned by nickname back to
// unclaimed and returns how many were released. It is idempotent: releasing
// a nickname that owns nothing returns 0.
func (s *ClaimService) ReleaseItems(ctx context.Context, transactionID, nickname string) (int, error) {
	nick := models.NormalizeNickname(nickname)
	if nick == "" {
		return 0, fmt.Errorf("%w: nickname is required", models.ErrValidation)
	}

	current, err := s.store.ListItems(ctx, transactionID)
	if err != nil {
		return 0, err
	}
	if len(current) == 0 {
		if _, err := s.store.GetTransaction(ctx, transactionID); err != nil {
			return 0, err
		}
	}

	released := 0
	var releasedIDs []string
	for _, item := range current {
		if item.Owner != nick {
			continue
		}
		version, err := s.store.CompareAndSetOwner(ctx, item.ID, nick, "")
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			// Ownership moved under us; it is no longer ours to release.
			continue
		}
		if err != nil {
			return released, err
		}
		released++
		releasedIDs = append(releasedIDs, item.ID)
		item.Owner = ""
		item.Version = version
		s.notifyItemChanged(transactionID, item)
	}

	if s.events != nil && released > 0 {
		s.events.Log(eventlog.NewEvent(
			eventlog.WithType("item.released"),
			eventlog.WithData(map[string]any{
				"share_id": transactionID,
				"nickname": nick,
				"items":    releasedIDs,
			}),
		))
	}
	slog.Info("release processed", "share_id", transactionID, "nickname", nick, "released", released)

	return released, nil
}

func (s *ClaimService) notifyItemChanged(transactionID string, item models.Item) {
	if s.notifier != nil {
		s.notifier.ItemChanged(transactionID, item)
	}
}
