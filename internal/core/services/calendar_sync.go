package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.CalendarService = (*CalendarSync)(nil)

// CalendarSyncConfig holds configuration for calendar reconciliation.
type CalendarSyncConfig struct {
	Store      driven.CalendarStore
	ContractID string
	Logger     *slog.Logger
	Now        func() time.Time
}

// CalendarSync mirrors upcoming peak events into the calendar store.
// Past events are left untouched as history.
type CalendarSync struct {
	store      driven.CalendarStore
	contractID string
	logger     *slog.Logger
	now        func() time.Time
}

// NewCalendarSync creates a calendar sync.
func NewCalendarSync(cfg CalendarSyncConfig) *CalendarSync {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CalendarSync{
		store:      cfg.Store,
		contractID: cfg.ContractID,
		logger:     logger,
		now:        now,
	}
}

// Run reconciles the calendar with the upcoming events of state.
func (s *CalendarSync) Run(ctx context.Context, state *domain.PublicFeedState) (*domain.SyncResult, error) {
	start := s.now()
	result := &domain.SyncResult{Task: domain.TaskCalendarSync, From: start}

	existing, err := s.store.List(ctx, s.contractID, start)
	if err != nil {
		return s.fail(result, start, fmt.Errorf("list calendar events: %w", err))
	}
	current := make(map[string]*domain.CalendarEvent, len(existing))
	for _, e := range existing {
		current[e.ID] = e
	}

	var upserts []*domain.CalendarEvent
	wanted := make(map[string]struct{})
	for _, peak := range state.Upcoming(start) {
		event := domain.NewCalendarEvent(s.contractID, peak, start)
		wanted[event.ID] = struct{}{}

		old, ok := current[event.ID]
		switch {
		case !ok:
			result.Stats.Created++
		case old.Summary != event.Summary || !old.Start.Equal(event.Start) || !old.End.Equal(event.End):
			result.Stats.Updated++
		default:
			result.Stats.Skipped++
			continue
		}
		upserts = append(upserts, event)
	}

	var deletes []string
	for id, e := range current {
		if _, ok := wanted[id]; !ok && e.Start.After(start) {
			deletes = append(deletes, id)
		}
	}

	if len(upserts) > 0 {
		if err := s.store.Upsert(ctx, upserts); err != nil {
			return s.fail(result, start, fmt.Errorf("upsert calendar events: %w", err))
		}
	}
	if len(deletes) > 0 {
		if err := s.store.Delete(ctx, deletes); err != nil {
			return s.fail(result, start, fmt.Errorf("delete calendar events: %w", err))
		}
		result.Stats.Deleted = len(deletes)
	}

	result.Success = true
	result.To = s.now()
	result.Duration = result.To.Sub(start).Seconds()

	s.logger.Info("calendar synchronized",
		"contract_id", s.contractID,
		"created", result.Stats.Created,
		"updated", result.Stats.Updated,
		"deleted", result.Stats.Deleted,
	)
	return result, nil
}

func (s *CalendarSync) fail(result *domain.SyncResult, start time.Time, err error) (*domain.SyncResult, error) {
	result.Error = err.Error()
	result.To = s.now()
	result.Duration = result.To.Sub(start).Seconds()
	return result, err
}

// ListEvents returns mirrored events ending after since.
func (s *CalendarSync) ListEvents(ctx context.Context, since time.Time) ([]*domain.CalendarEvent, error) {
	return s.store.List(ctx, s.contractID, since)
}
