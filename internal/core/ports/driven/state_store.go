package driven

import (
	"context"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// StateStore persists the coordinator's schedules and latest snapshot
// so that restarts and API-only instances see the last published state.
type StateStore interface {
	// SaveSchedules stores the scheduling state for a contract
	SaveSchedules(ctx context.Context, contractID string, schedules *domain.Schedules) error

	// GetSchedules retrieves the scheduling state (domain.ErrNotFound if absent)
	GetSchedules(ctx context.Context, contractID string) (*domain.Schedules, error)

	// SaveSnapshot stores the latest snapshot for a contract. A snapshot older
	// than the stored one is rejected with domain.ErrStaleSnapshot.
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error

	// GetSnapshot retrieves the latest snapshot (domain.ErrNotFound if absent)
	GetSnapshot(ctx context.Context, contractID string) (*domain.Snapshot, error)

	// Ping checks if the backend is reachable
	Ping(ctx context.Context) error
}
