package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CalendarStore = (*CalendarStore)(nil)

// CalendarStore implements driven.CalendarStore using PostgreSQL
type CalendarStore struct {
	db *DB
}

// NewCalendarStore creates a new CalendarStore
func NewCalendarStore(db *DB) *CalendarStore {
	return &CalendarStore{db: db}
}

// List returns events for a contract ending after since, ordered by start
func (s *CalendarStore) List(ctx context.Context, contractID string, since time.Time) ([]*domain.CalendarEvent, error) {
	query := `
		SELECT id, contract_id, summary, offer, starts_at, ends_at, updated_at
		FROM calendar_events
		WHERE contract_id = $1 AND ends_at > $2
		ORDER BY starts_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, contractID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	var events []*domain.CalendarEvent
	for rows.Next() {
		var e domain.CalendarEvent
		if err := rows.Scan(&e.ID, &e.ContractID, &e.Summary, &e.Offer, &e.Start, &e.End, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Upsert creates or updates events by ID in one transaction
func (s *CalendarStore) Upsert(ctx context.Context, events []*domain.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO calendar_events (id, contract_id, summary, offer, starts_at, ends_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			summary = EXCLUDED.summary,
			offer = EXCLUDED.offer,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			updated_at = EXCLUDED.updated_at
	`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			if _, err := stmt.ExecContext(ctx, e.ID, e.ContractID, e.Summary, e.Offer, e.Start, e.End, e.UpdatedAt); err != nil {
				return fmt.Errorf("failed to upsert calendar event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// Delete removes events by ID
func (s *CalendarStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete calendar events: %w", err)
	}
	return nil
}
