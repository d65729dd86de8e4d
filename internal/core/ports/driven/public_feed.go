package driven

import (
	"context"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// PublicFeedClient fetches announced peak events from the public open data feed.
// No authentication is involved.
type PublicFeedClient interface {
	// FetchPeakData retrieves the current peak events for the configured offer.
	// A returned error means the previous state is still the best known state.
	FetchPeakData(ctx context.Context) (*domain.PublicFeedState, error)

	// Close releases idle connections.
	Close() error
}
