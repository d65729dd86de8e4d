package driving

import (
	"context"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// SnapshotService gives pull access to the latest published snapshot
type SnapshotService interface {
	// Snapshot returns the latest snapshot (domain.ErrNotFound before the first publish)
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
}

// CoordinatorService drives the update tick and exposes its state
type CoordinatorService interface {
	SnapshotService

	// Subscribe returns a channel receiving each newly published snapshot
	// and a func that unsubscribes and closes the channel
	Subscribe() (<-chan *domain.Snapshot, func())

	// Refresh runs a tick now (domain.ErrTickInProgress if one is running)
	Refresh(ctx context.Context) (*domain.TickResult, error)

	// Status returns coordinator health and task handles
	Status(ctx context.Context) (*domain.CoordinatorStatus, error)

	// Backfill starts a consumption history import covering the last days
	Backfill(ctx context.Context, days int) (*domain.TaskHandle, error)

	// CancelTask cancels a running background task (domain.ErrNotFound if idle)
	CancelTask(ctx context.Context, name string) error
}

// CalendarService exposes mirrored peak events
type CalendarService interface {
	// ListEvents returns calendar events ending after since
	ListEvents(ctx context.Context, since time.Time) ([]*domain.CalendarEvent, error)
}
