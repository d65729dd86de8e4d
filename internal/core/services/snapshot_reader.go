package services

import (
	"context"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.SnapshotService = (*StoredSnapshotReader)(nil)

// StoredSnapshotReader serves the snapshot persisted by whichever
// instance runs the coordinator. API-only instances use it.
type StoredSnapshotReader struct {
	store      driven.StateStore
	contractID string
}

// NewStoredSnapshotReader creates a reader for one contract.
func NewStoredSnapshotReader(store driven.StateStore, contractID string) *StoredSnapshotReader {
	return &StoredSnapshotReader{store: store, contractID: contractID}
}

// Snapshot returns the latest stored snapshot.
func (r *StoredSnapshotReader) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	return r.store.GetSnapshot(ctx, r.contractID)
}
