package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Ensure MockCalendarStore implements CalendarStore
var _ driven.CalendarStore = (*MockCalendarStore)(nil)

// MockCalendarStore is a mock implementation of CalendarStore for testing
type MockCalendarStore struct {
	mu     sync.RWMutex
	events map[string]*domain.CalendarEvent

	UpsertFn func(events []*domain.CalendarEvent) error
	// Block, when set, is waited on at the start of Upsert.
	Block chan struct{}
}

// NewMockCalendarStore creates a new MockCalendarStore
func NewMockCalendarStore() *MockCalendarStore {
	return &MockCalendarStore{
		events: make(map[string]*domain.CalendarEvent),
	}
}

func (m *MockCalendarStore) List(ctx context.Context, contractID string, since time.Time) ([]*domain.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.CalendarEvent
	for _, e := range m.events {
		if e.ContractID == contractID && e.End.After(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MockCalendarStore) Upsert(ctx context.Context, events []*domain.CalendarEvent) error {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.UpsertFn != nil {
		if err := m.UpsertFn(events); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		m.events[e.ID] = e
	}
	return nil
}

func (m *MockCalendarStore) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.events, id)
	}
	return nil
}

// Len returns the number of stored events.
func (m *MockCalendarStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
