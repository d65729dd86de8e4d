package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Ensure MockConsumptionStore implements ConsumptionStore
var _ driven.ConsumptionStore = (*MockConsumptionStore)(nil)

// MockConsumptionStore is a mock implementation of ConsumptionStore for testing
type MockConsumptionStore struct {
	mu      sync.RWMutex
	records map[string]domain.ConsumptionRecord

	SaveFn func(records []domain.ConsumptionRecord) error
}

// NewMockConsumptionStore creates a new MockConsumptionStore
func NewMockConsumptionStore() *MockConsumptionStore {
	return &MockConsumptionStore{
		records: make(map[string]domain.ConsumptionRecord),
	}
}

func consumptionKey(r domain.ConsumptionRecord) string {
	return r.ContractID + "|" + r.HourStart.UTC().Format(time.RFC3339)
}

func (m *MockConsumptionStore) LatestHour(ctx context.Context, contractID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest time.Time
	for _, r := range m.records {
		if r.ContractID == contractID && r.HourStart.After(latest) {
			latest = r.HourStart
		}
	}
	if latest.IsZero() {
		return time.Time{}, domain.ErrNotFound
	}
	return latest, nil
}

func (m *MockConsumptionStore) Save(ctx context.Context, records []domain.ConsumptionRecord) (int, error) {
	if m.SaveFn != nil {
		if err := m.SaveFn(records); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[consumptionKey(r)] = r
	}
	return len(records), nil
}

func (m *MockConsumptionStore) Range(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ConsumptionRecord
	for _, r := range m.records {
		if r.ContractID == contractID && !r.HourStart.Before(from) && r.HourStart.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HourStart.Before(out[j].HourStart) })
	return out, nil
}

// Len returns the number of stored records.
func (m *MockConsumptionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
