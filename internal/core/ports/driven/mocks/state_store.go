package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Ensure MockStateStore implements StateStore
var _ driven.StateStore = (*MockStateStore)(nil)

// MockStateStore is a mock implementation of StateStore for testing
type MockStateStore struct {
	mu        sync.RWMutex
	schedules map[string]domain.Schedules
	snapshots map[string]*domain.Snapshot
	saves     int

	SaveSnapshotFn func(snapshot *domain.Snapshot) error
	GetSnapshotFn  func(contractID string) (*domain.Snapshot, error)
	PingFn         func() error
}

// NewMockStateStore creates a new MockStateStore
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		schedules: make(map[string]domain.Schedules),
		snapshots: make(map[string]*domain.Snapshot),
	}
}

func (m *MockStateStore) SaveSchedules(ctx context.Context, contractID string, schedules *domain.Schedules) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[contractID] = *schedules
	return nil
}

func (m *MockStateStore) GetSchedules(ctx context.Context, contractID string) (*domain.Schedules, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[contractID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MockStateStore) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	if m.SaveSnapshotFn != nil {
		if err := m.SaveSnapshotFn(snapshot); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.snapshots[snapshot.Contract.ID]; ok && cur.Sequence > snapshot.Sequence {
		return fmt.Errorf("%w: sequence %d", domain.ErrStaleSnapshot, snapshot.Sequence)
	}
	m.snapshots[snapshot.Contract.ID] = snapshot
	m.saves++
	return nil
}

func (m *MockStateStore) GetSnapshot(ctx context.Context, contractID string) (*domain.Snapshot, error) {
	if m.GetSnapshotFn != nil {
		return m.GetSnapshotFn(contractID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[contractID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *MockStateStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// SnapshotSaves returns how many snapshots were stored.
func (m *MockStateStore) SnapshotSaves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
