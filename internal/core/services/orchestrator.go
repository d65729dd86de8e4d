package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
	"github.com/jf-navica/hydroqc-ha/internal/telemetry"
)

// Defaults for orchestrator configuration.
const (
	DefaultPreheatDuration      = 120 * time.Minute
	DefaultConsumptionSyncEvery = time.Hour
	DefaultOfflineNoticeEvery   = time.Hour
)

// OrchestratorConfig holds configuration for the update orchestrator.
type OrchestratorConfig struct {
	Mode       domain.Mode
	Contract   domain.ContractIdentity
	RatePlan   domain.RatePlan
	CustomerID string
	AccountID  string

	PreheatDuration       time.Duration
	EnableCalendarSync    bool
	EnableConsumptionSync bool

	Public      driven.PublicFeedClient
	Portal      driven.PortalClient // Unused in opendata mode
	Tasks       *TaskDeduper
	Calendar    *CalendarSync    // Optional
	Consumption *ConsumptionSync // Optional

	Policy     *TimingPolicy
	OfflineLog *OfflineBackoffLogger
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// UpdateOrchestrator runs one update pass per tick: decides which sources
// are due, fetches them, triggers background syncs and builds the next
// snapshot. It is not safe for concurrent use; the coordinator serializes
// calls to Tick.
type UpdateOrchestrator struct {
	cfg     OrchestratorConfig
	family  domain.RateFamily
	policy  *TimingPolicy
	offline *OfflineBackoffLogger
	logger  *slog.Logger
	now     func() time.Time

	schedules     domain.Schedules
	lastPeakCount int
	current       *domain.Snapshot
}

// NewUpdateOrchestrator creates an orchestrator.
func NewUpdateOrchestrator(cfg OrchestratorConfig) *UpdateOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	policy := cfg.Policy
	if policy == nil {
		policy = NewTimingPolicy(nil)
	}
	offline := cfg.OfflineLog
	if offline == nil {
		offline = NewOfflineBackoffLogger()
	}
	if cfg.PreheatDuration <= 0 {
		cfg.PreheatDuration = DefaultPreheatDuration
	}
	if cfg.Tasks == nil {
		cfg.Tasks = NewTaskDeduper(TaskDeduperConfig{Logger: logger, Metrics: cfg.Metrics, Now: now})
	}

	return &UpdateOrchestrator{
		cfg:     cfg,
		family:  cfg.RatePlan.Family(),
		policy:  policy,
		offline: offline,
		logger:  logger,
		now:     now,
		current: &domain.Snapshot{Mode: cfg.Mode, Contract: cfg.Contract},
	}
}

// Restore seeds the orchestrator with persisted state. Either argument
// may be nil. It reports whether the snapshot content was adopted.
//
// A snapshot from another contract or mode only contributes its sequence.
// An adopted snapshot takes the configured contract identity, and its
// portal group is dropped when it was fetched under another rate.
func (o *UpdateOrchestrator) Restore(schedules *domain.Schedules, snapshot *domain.Snapshot) bool {
	if schedules != nil {
		o.schedules = *schedules
	}
	if snapshot == nil {
		return false
	}
	if snapshot.Contract.ID != o.cfg.Contract.ID || snapshot.Mode != o.cfg.Mode {
		o.Resequence(snapshot.Sequence)
		return false
	}

	restored := *snapshot
	if restored.Contract.RateWithOption != o.cfg.Contract.RateWithOption ||
		(restored.Portal != nil && restored.Portal.Rate != nil && restored.Portal.Rate.Family != o.family) {
		restored.Portal = nil
	}
	restored.Contract = o.cfg.Contract
	o.current = &restored
	o.lastPeakCount = restored.Public.EventCount()
	return true
}

// Resequence makes the current snapshot continue after seq when the
// store already holds seq or later, and returns the current snapshot.
func (o *UpdateOrchestrator) Resequence(seq uint64) *domain.Snapshot {
	if o.current.Sequence > seq {
		return o.current
	}
	next := *o.current
	next.Sequence = seq + 1
	o.current = &next
	return o.current
}

// Schedules returns a copy of the scheduling state.
func (o *UpdateOrchestrator) Schedules() domain.Schedules {
	return o.schedules
}

// Current returns the last built snapshot.
func (o *UpdateOrchestrator) Current() *domain.Snapshot {
	return o.current
}

// Tick runs one update pass and returns the snapshot to publish. When the
// portal fetch fails the snapshot is still returned, carrying the previous
// portal fields and the classified error, and the error is returned too.
func (o *UpdateOrchestrator) Tick(ctx context.Context) (*domain.Snapshot, *domain.TickResult, error) {
	now := o.now()
	local := o.policy.Local(now)
	result := &domain.TickResult{StartedAt: now}
	next := o.current.Next(now)

	o.updatePublic(ctx, local, next, result)
	o.maybeSyncCalendar(next, result)

	if !o.cfg.Mode.IsPortal() || o.cfg.Portal == nil {
		return o.publish(next, result, nil)
	}

	if d := o.policy.PortalDecision(local, o.schedules.Portal); !d.Due {
		o.logger.Debug("portal update skipped", append([]any{"source", domain.SourcePortal}, d.LogAttrs()...)...)
		o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePortal), telemetry.OutcomeSkipped)
		o.maybeSyncConsumption(local, next, result)
		return o.publish(next, result, nil)
	}

	available, err := o.cfg.Portal.CheckAvailability(ctx)
	if err != nil {
		return o.fail(ctx, next, result, fmt.Errorf("check availability: %w", err))
	}
	if !available {
		result.PortalOffline = true
		next.PortalAvailable = boolPtr(false)
		o.cfg.Metrics.RecordPortalOffline(ctx)
		o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePortal), telemetry.OutcomeOffline)
		if o.offline.ShouldLog(PortalOfflineKey, now, DefaultOfflineNoticeEvery) {
			o.logger.Warn("portal is offline, skipping update", "source", domain.SourcePortal)
		}
		return o.publish(next, result, nil)
	}
	next.PortalAvailable = boolPtr(true)

	data, err := o.fetchPortal(ctx, now)
	if err != nil {
		return o.fail(ctx, next, result, err)
	}

	next.Portal = data
	o.schedules.Portal.Advance(local)
	result.PortalUpdated = true
	o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePortal), telemetry.OutcomeSuccess)
	o.logger.Debug("portal data updated",
		"source", domain.SourcePortal,
		"contract_id", o.cfg.Contract.ID,
		"rate", o.family,
	)

	o.maybeSyncConsumption(local, next, result)
	return o.publish(next, result, nil)
}

// updatePublic fetches the public feed when it is due. Failures leave the
// previous state and schedule in place.
func (o *UpdateOrchestrator) updatePublic(ctx context.Context, local time.Time, next *domain.Snapshot, result *domain.TickResult) {
	d := o.policy.PublicDecision(local, o.schedules.Public)
	if !d.Due {
		o.logger.Debug("public feed update skipped", append([]any{"source", domain.SourcePublic}, d.LogAttrs()...)...)
		o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePublic), telemetry.OutcomeSkipped)
		return
	}
	o.logger.Debug("public feed update triggered", append([]any{"source", domain.SourcePublic}, d.LogAttrs()...)...)

	state, err := o.cfg.Public.FetchPeakData(ctx)
	if err != nil {
		fe := domain.NewFetchError(domain.SourcePublic, err)
		o.logger.Warn("failed to fetch public peak data",
			"source", domain.SourcePublic,
			"error", err,
			"kind", fe.Kind,
		)
		o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePublic), telemetry.OutcomeFailure)
		return
	}

	next.Public = state
	result.PublicUpdated = true
	o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePublic), telemetry.OutcomeSuccess)
	o.cfg.Metrics.RecordPeakEvents(ctx, state.Offer, state.EventCount())

	if o.schedules.Public.Advance(local) {
		o.logger.Info("hourly peak data refresh",
			"source", domain.SourcePublic,
			"hour", fmt.Sprintf("%02d:00", local.Hour()),
			"events", state.EventCount(),
		)
	}
}

func (o *UpdateOrchestrator) maybeSyncCalendar(next *domain.Snapshot, result *domain.TickResult) {
	if !o.cfg.EnableCalendarSync || o.cfg.Calendar == nil {
		return
	}
	count := next.Public.EventCount()
	if count == o.lastPeakCount {
		return
	}

	state := next.Public
	started := o.cfg.Tasks.TryStart(domain.TaskCalendarSync, strconv.Itoa(count), func(ctx context.Context) error {
		_, err := o.cfg.Calendar.Run(ctx, state)
		return err
	})
	if started {
		o.lastPeakCount = count
		result.TasksStarted = append(result.TasksStarted, domain.TaskCalendarSync)
	}
}

func (o *UpdateOrchestrator) maybeSyncConsumption(local time.Time, next *domain.Snapshot, result *domain.TickResult) {
	if !o.cfg.EnableConsumptionSync || o.cfg.Consumption == nil || !next.HasPortalData() {
		return
	}
	if last := o.schedules.LastConsumptionSync; last != nil && local.Sub(*last) < DefaultConsumptionSyncEvery {
		return
	}

	started := o.cfg.Tasks.TryStart(domain.TaskConsumptionSync, local.Format("2006-01-02T15"), func(ctx context.Context) error {
		_, err := o.cfg.Consumption.Sync(ctx)
		return err
	})
	if started {
		t := local
		o.schedules.LastConsumptionSync = &t
		result.TasksStarted = append(result.TasksStarted, domain.TaskConsumptionSync)
	}
}

// fetchPortal walks the portal from customer down to the rate specific
// data. The result is only used when every step succeeded.
func (o *UpdateOrchestrator) fetchPortal(ctx context.Context, now time.Time) (*domain.PortalData, error) {
	p := o.cfg.Portal

	if p.IsSessionExpired() {
		o.logger.Info("portal session expired, re-authenticating", "source", domain.SourcePortal)
		if err := p.Login(ctx); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	contractID := o.cfg.Contract.ID
	h, err := p.FetchAccountHierarchy(ctx, o.cfg.CustomerID, o.cfg.AccountID, contractID)
	if err != nil {
		return nil, fmt.Errorf("account hierarchy: %w", err)
	}
	periods, err := p.FetchPeriods(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("periods: %w", err)
	}
	outages, err := p.FetchOutages(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("outages: %w", err)
	}

	data := &domain.PortalData{
		Customer:  h.Customer,
		Account:   h.Account,
		Contract:  h.Contract,
		Periods:   periods,
		Outages:   outages,
		FetchedAt: now,
	}

	switch o.family {
	case domain.RateFamilyDCPC:
		winter, err := p.FetchWinterCredits(ctx, contractID, o.cfg.PreheatDuration)
		if err != nil {
			return nil, fmt.Errorf("winter credits: %w", err)
		}
		data.Rate = domain.NewWinterCreditDetails(winter)
	case domain.RateFamilyDPC:
		flex, err := p.FetchFlexData(ctx, contractID, o.cfg.PreheatDuration)
		if err != nil {
			return nil, fmt.Errorf("flex data: %w", err)
		}
		peaks, err := p.RefreshPeakData(ctx, contractID)
		if err != nil {
			return nil, fmt.Errorf("peak data: %w", err)
		}
		merged := *flex
		merged.CriticalPeaks = peaks
		data.Rate = domain.NewFlexDetails(&merged)
	case domain.RateFamilyDT:
		annual, err := p.FetchAnnualConsumption(ctx, contractID)
		if err != nil {
			return nil, fmt.Errorf("annual consumption: %w", err)
		}
		data.Rate = domain.NewDualTariffDetails(annual)
	}

	return data, nil
}

func (o *UpdateOrchestrator) fail(ctx context.Context, next *domain.Snapshot, result *domain.TickResult, err error) (*domain.Snapshot, *domain.TickResult, error) {
	fe := domain.NewFetchError(domain.SourcePortal, err)
	o.logger.Error("portal update failed",
		"source", domain.SourcePortal,
		"error", err,
		"kind", fe.Kind,
	)
	o.cfg.Metrics.RecordFetch(ctx, string(domain.SourcePortal), telemetry.OutcomeFailure)

	next.LastError = fe.Error()
	next.LastErrorKind = fe.Kind
	return o.publish(next, result, fe)
}

func (o *UpdateOrchestrator) publish(next *domain.Snapshot, result *domain.TickResult, err error) (*domain.Snapshot, *domain.TickResult, error) {
	completed := o.now()
	next.PublishedAt = completed
	if err == nil {
		next.LastSuccessAt = &completed
	}
	result.CompletedAt = completed
	o.current = next
	return next, result, err
}

func boolPtr(b bool) *bool {
	return &b
}
