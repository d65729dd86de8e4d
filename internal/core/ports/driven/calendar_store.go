package driven

import (
	"context"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// CalendarStore persists peak events mirrored into a contract calendar.
type CalendarStore interface {
	// List returns events for a contract ending after since, ordered by start
	List(ctx context.Context, contractID string, since time.Time) ([]*domain.CalendarEvent, error)

	// Upsert creates or updates events by ID
	Upsert(ctx context.Context, events []*domain.CalendarEvent) error

	// Delete removes events by ID
	Delete(ctx context.Context, ids []string) error
}
