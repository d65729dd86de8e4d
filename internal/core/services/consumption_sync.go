package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// DefaultConsumptionChunk is the span fetched per portal request.
const DefaultConsumptionChunk = 7 * 24 * time.Hour

// ConsumptionSyncConfig holds configuration for consumption history sync.
type ConsumptionSyncConfig struct {
	Portal     driven.PortalClient
	Store      driven.ConsumptionStore
	ContractID string
	Logger     *slog.Logger
	Now        func() time.Time
	Location   *time.Location // Day boundaries for backfills
	ChunkSize  time.Duration  // default 7 days
}

// ConsumptionSync copies hourly consumption from the portal into the
// consumption store.
type ConsumptionSync struct {
	portal     driven.PortalClient
	store      driven.ConsumptionStore
	contractID string
	logger     *slog.Logger
	now        func() time.Time
	loc        *time.Location
	chunk      time.Duration
}

// NewConsumptionSync creates a consumption sync.
func NewConsumptionSync(cfg ConsumptionSyncConfig) *ConsumptionSync {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultConsumptionChunk
	}
	return &ConsumptionSync{
		portal:     cfg.Portal,
		store:      cfg.Store,
		contractID: cfg.ContractID,
		logger:     logger,
		now:        now,
		loc:        loc,
		chunk:      chunk,
	}
}

// Sync fetches the hours recorded since the latest stored hour. With an
// empty store it starts DefaultBackfillDays ago.
func (s *ConsumptionSync) Sync(ctx context.Context) (*domain.SyncResult, error) {
	to := s.now().Truncate(time.Hour)

	latest, err := s.store.LatestHour(ctx, s.contractID)
	var from time.Time
	switch {
	case errors.Is(err, domain.ErrNotFound):
		from = s.startOfDay(to.AddDate(0, 0, -domain.DefaultBackfillDays))
	case err != nil:
		return nil, fmt.Errorf("latest consumption hour: %w", err)
	default:
		from = latest.Add(time.Hour)
	}

	return s.copyRange(ctx, domain.TaskConsumptionSync, from, to)
}

// Backfill re-imports the last days of history.
func (s *ConsumptionSync) Backfill(ctx context.Context, days int) (*domain.SyncResult, error) {
	if days <= 0 || days > domain.MaxBackfillDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, domain.MaxBackfillDays)
	}
	to := s.now().Truncate(time.Hour)
	from := s.startOfDay(to.AddDate(0, 0, -days))
	return s.copyRange(ctx, domain.TaskConsumptionBackfill, from, to)
}

func (s *ConsumptionSync) startOfDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

func (s *ConsumptionSync) copyRange(ctx context.Context, task string, from, to time.Time) (*domain.SyncResult, error) {
	start := s.now()
	result := &domain.SyncResult{Task: task, From: from, To: to}
	finish := func(err error) (*domain.SyncResult, error) {
		result.Duration = s.now().Sub(start).Seconds()
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
		result.Success = true
		return result, nil
	}

	if !from.Before(to) {
		s.logger.Debug("consumption already up to date", "task", task, "contract_id", s.contractID)
		return finish(nil)
	}

	if s.portal.IsSessionExpired() {
		if err := s.portal.Login(ctx); err != nil {
			return finish(fmt.Errorf("portal login: %w", err))
		}
	}

	for chunkStart := from; chunkStart.Before(to); chunkStart = chunkStart.Add(s.chunk) {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		chunkEnd := chunkStart.Add(s.chunk)
		if chunkEnd.After(to) {
			chunkEnd = to
		}

		records, err := s.portal.FetchHourlyConsumption(ctx, s.contractID, chunkStart, chunkEnd)
		if err != nil {
			return finish(domain.NewFetchError(domain.SourcePortal, err))
		}
		for i := range records {
			if records[i].ContractID == "" {
				records[i].ContractID = s.contractID
			}
		}
		if len(records) == 0 {
			continue
		}

		n, err := s.store.Save(ctx, records)
		if err != nil {
			return finish(fmt.Errorf("save consumption: %w", err))
		}
		result.Stats.Created += n
		result.Stats.Skipped += len(records) - n

		s.logger.Debug("consumption chunk imported",
			"task", task,
			"from", chunkStart,
			"to", chunkEnd,
			"records", n,
		)
	}

	s.logger.Info("consumption synchronized",
		"task", task,
		"contract_id", s.contractID,
		"from", from,
		"to", to,
		"records", result.Stats.Created,
	)
	return finish(nil)
}
