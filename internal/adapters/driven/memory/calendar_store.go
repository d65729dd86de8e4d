package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CalendarStore = (*CalendarStore)(nil)

// CalendarStore keeps calendar events by ID.
type CalendarStore struct {
	mu     sync.RWMutex
	events map[string]domain.CalendarEvent
}

// NewCalendarStore creates an empty CalendarStore.
func NewCalendarStore() *CalendarStore {
	return &CalendarStore{events: make(map[string]domain.CalendarEvent)}
}

func (s *CalendarStore) List(_ context.Context, contractID string, since time.Time) ([]*domain.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.CalendarEvent
	for _, e := range s.events {
		if e.ContractID == contractID && e.End.After(since) {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (s *CalendarStore) Upsert(_ context.Context, events []*domain.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.ID] = *e
	}
	return nil
}

func (s *CalendarStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.events, id)
	}
	return nil
}
