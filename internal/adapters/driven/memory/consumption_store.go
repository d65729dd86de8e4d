package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConsumptionStore = (*ConsumptionStore)(nil)

type hourKey struct {
	contractID string
	hour       int64
}

// ConsumptionStore keeps hourly records keyed by contract and hour.
type ConsumptionStore struct {
	mu      sync.RWMutex
	records map[hourKey]domain.ConsumptionRecord
}

// NewConsumptionStore creates an empty ConsumptionStore.
func NewConsumptionStore() *ConsumptionStore {
	return &ConsumptionStore{records: make(map[hourKey]domain.ConsumptionRecord)}
}

func (s *ConsumptionStore) LatestHour(_ context.Context, contractID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for k, r := range s.records {
		if k.contractID == contractID && r.HourStart.After(latest) {
			latest = r.HourStart
		}
	}
	if latest.IsZero() {
		return time.Time{}, domain.ErrNotFound
	}
	return latest, nil
}

func (s *ConsumptionStore) Save(_ context.Context, records []domain.ConsumptionRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ContractID == "" {
			return 0, fmt.Errorf("%w: record at %s has no contract", domain.ErrInvalidInput, r.HourStart)
		}
	}
	for _, r := range records {
		s.records[hourKey{r.ContractID, r.HourStart.Unix()}] = r
	}
	return len(records), nil
}

func (s *ConsumptionStore) Range(_ context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ConsumptionRecord
	for k, r := range s.records {
		if k.contractID == contractID && !r.HourStart.Before(from) && r.HourStart.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HourStart.Before(out[j].HourStart) })
	return out, nil
}
