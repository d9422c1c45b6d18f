package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabscan/tabscan/internal/eventlog"
)

// Ensure PostgresStore implements eventlog.Logger
var _ eventlog.Logger = (*PostgresStore)(nil)

// SaveEvent persists one event with its payload serialized as JSON.
func (s *PostgresStore) SaveEvent(ctx context.Context, e eventlog.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (id, event_type, event_data, created_at) VALUES ($1, $2, $3, $4)",
		e.ID.String(), e.Type, string(data), e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// EventsByType returns all events of one type, oldest first.
func (s *PostgresStore) EventsByType(ctx context.Context, eventType string) ([]eventlog.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_type, event_data, created_at FROM events WHERE event_type = $1 ORDER BY created_at",
		eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]eventlog.Event, 0)
	for rows.Next() {
		var e eventlog.Event
		var id, data string
		var createdAt int64
		if err := rows.Scan(&id, &e.Type, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event id: %w", err)
		}
		e.ID = parsed
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		if data != "" && data != "null" {
			var payload any
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
			e.Data = payload
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}
