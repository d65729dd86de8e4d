package driven

import (
	"context"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// ConsumptionStore persists hourly consumption history.
type ConsumptionStore interface {
	// LatestHour returns the most recent stored hour (domain.ErrNotFound if none)
	LatestHour(ctx context.Context, contractID string) (time.Time, error)

	// Save upserts records keyed by contract and hour; returns rows written
	Save(ctx context.Context, records []domain.ConsumptionRecord) (int, error)

	// Range returns records in [from, to) ordered by hour
	Range(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error)
}
