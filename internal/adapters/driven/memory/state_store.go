package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateStore = (*StateStore)(nil)

// StateStore keeps schedules and snapshots in maps keyed by contract.
type StateStore struct {
	mu        sync.RWMutex
	schedules map[string]domain.Schedules
	snapshots map[string]*domain.Snapshot
}

// NewStateStore creates an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{
		schedules: make(map[string]domain.Schedules),
		snapshots: make(map[string]*domain.Snapshot),
	}
}

func (s *StateStore) SaveSchedules(_ context.Context, contractID string, schedules *domain.Schedules) error {
	if schedules == nil {
		return fmt.Errorf("%w: nil schedules", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[contractID] = *schedules
	return nil
}

func (s *StateStore) GetSchedules(_ context.Context, contractID string) (*domain.Schedules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[contractID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sch, nil
}

// SaveSnapshot keeps the snapshot unless a newer sequence is already stored.
// Snapshots are immutable once published, so the pointer is stored as is.
func (s *StateStore) SaveSnapshot(_ context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil || snapshot.Contract.ID == "" {
		return fmt.Errorf("%w: snapshot without contract", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.snapshots[snapshot.Contract.ID]; ok && cur.Sequence > snapshot.Sequence {
		return fmt.Errorf("%w: sequence %d for %s", domain.ErrStaleSnapshot, snapshot.Sequence, snapshot.Contract.ID)
	}
	s.snapshots[snapshot.Contract.ID] = snapshot
	return nil
}

func (s *StateStore) GetSnapshot(_ context.Context, contractID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[contractID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snap, nil
}

func (s *StateStore) Ping(context.Context) error {
	return nil
}
