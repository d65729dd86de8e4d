package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driving"
	"github.com/jf-navica/hydroqc-ha/internal/telemetry"
)

// Verify interface compliance
var _ driving.CoordinatorService = (*Coordinator)(nil)

const (
	// DefaultTickInterval is the base polling period.
	DefaultTickInterval = 5 * time.Minute

	// tickLockName is the distributed lock guarding one tick across instances.
	tickLockName = "coordinator-tick"

	// hourlyRefreshSpec runs a tick at the top of every hour.
	hourlyRefreshSpec = "0 * * * *"
)

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	Orchestrator *UpdateOrchestrator
	Tasks        *TaskDeduper
	Consumption  *ConsumptionSync // Optional: enables on-demand backfills
	Public       driven.PublicFeedClient
	Portal       driven.PortalClient    // Optional in opendata mode
	State        driven.StateStore      // Optional: persists schedules and snapshots
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Runtime      *domain.RuntimeConfig  // Optional
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger

	Interval      time.Duration  // Tick period (default: 5m)
	LockTTL       time.Duration  // TTL for the tick lock (default: 2x interval)
	HourlyRefresh bool           // Also tick at the top of every hour
	Location      *time.Location // Location of the hourly schedule
	Now           func() time.Time
}

// Coordinator owns the recurring update tick, the published snapshot and
// the lifecycle of the upstream clients and background tasks.
type Coordinator struct {
	orch        *UpdateOrchestrator
	tasks       *TaskDeduper
	consumption *ConsumptionSync
	public      driven.PublicFeedClient
	portal      driven.PortalClient
	state       driven.StateStore
	lock        driven.DistributedLock
	runtime     *domain.RuntimeConfig
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	now         func() time.Time

	interval      time.Duration
	lockTTL       time.Duration
	hourlyRefresh bool
	loc           *time.Location

	// Lifecycle
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	cron    *cron.Cron

	inProgress atomic.Bool
	refresh    singleflight.Group
	snapshot   atomic.Pointer[domain.Snapshot]

	subMu   sync.Mutex
	subs    map[uint64]chan *domain.Snapshot
	nextSub uint64

	statusMu         sync.RWMutex
	ticks            uint64
	lastTickAt       *time.Time
	lastTickDuration time.Duration
	lastError        string
	schedules        domain.Schedules

	shutdownOnce sync.Once
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultTickInterval
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}
	loc := cfg.Location
	if loc == nil {
		loc = cfg.Orchestrator.policy.Location()
	}
	tasks := cfg.Tasks
	if tasks == nil {
		tasks = cfg.Orchestrator.cfg.Tasks
	}

	return &Coordinator{
		orch:          cfg.Orchestrator,
		tasks:         tasks,
		consumption:   cfg.Consumption,
		public:        cfg.Public,
		portal:        cfg.Portal,
		state:         cfg.State,
		lock:          cfg.Lock,
		runtime:       cfg.Runtime,
		metrics:       cfg.Metrics,
		logger:        logger,
		now:           now,
		interval:      interval,
		lockTTL:       lockTTL,
		hourlyRefresh: cfg.HourlyRefresh,
		loc:           loc,
		subs:          make(map[uint64]chan *domain.Snapshot),
	}
}

// Start restores persisted state and begins the tick loop. The first tick
// runs immediately. It runs until Stop or Shutdown is called or ctx is
// cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	c.restore(ctx)

	if c.hourlyRefresh {
		cr := cron.New(cron.WithLocation(c.loc))
		if _, err := cr.AddFunc(hourlyRefreshSpec, func() {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("top of hour refresh")
			_, _ = c.runTick(ctx)
		}); err != nil {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return fmt.Errorf("schedule hourly refresh: %w", err)
		}
		c.mu.Lock()
		c.cron = cr
		c.mu.Unlock()
		cr.Start()
	}

	c.logger.Info("coordinator starting",
		"interval", c.interval,
		"mode", c.orch.cfg.Mode,
		"contract_id", c.orch.cfg.Contract.ID,
		"hourly_refresh", c.hourlyRefresh,
	)

	go c.run(ctx)
	return nil
}

// restore loads schedules and the last snapshot from the state store.
func (c *Coordinator) restore(ctx context.Context) {
	if c.state == nil {
		return
	}
	contractID := c.orch.cfg.Contract.ID

	schedules, err := c.state.GetSchedules(ctx, contractID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn("failed to load schedules", "contract_id", contractID, "error", err)
	}
	snapshot, err := c.state.GetSnapshot(ctx, contractID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn("failed to load snapshot", "contract_id", contractID, "error", err)
	}

	if c.orch.Restore(schedules, snapshot) {
		current := c.orch.Current()
		c.publish(current)
		c.logger.Info("restored previous snapshot", "contract_id", contractID, "sequence", current.Sequence)
	}

	c.statusMu.Lock()
	c.schedules = c.orch.Schedules()
	c.statusMu.Unlock()
}

// Stop stops the tick loop and the hourly refresh. Background tasks keep
// running; use Shutdown to stop everything.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.mu.Unlock()

	<-c.doneCh
	c.stopCron()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logger.Info("coordinator stopped")
}

// stopCron stops the hourly refresh and waits for a running job.
func (c *Coordinator) stopCron() {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
}

// Shutdown stops the tick, cancels and awaits background tasks, then
// closes both upstream clients and all subscriptions.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var err error
	c.shutdownOnce.Do(func() {
		c.Stop()

		var errs []error
		if tErr := c.tasks.Shutdown(ctx); tErr != nil {
			errs = append(errs, fmt.Errorf("background tasks: %w", tErr))
		}
		if c.public != nil {
			if cErr := c.public.Close(); cErr != nil {
				errs = append(errs, fmt.Errorf("close public feed client: %w", cErr))
			}
		}
		if c.portal != nil {
			if cErr := c.portal.Close(); cErr != nil {
				errs = append(errs, fmt.Errorf("close portal client: %w", cErr))
			}
		}

		c.subMu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.subMu.Unlock()

		err = errors.Join(errs...)
		c.logger.Info("coordinator shut down", "error", err)
	})
	return err
}

// run is the main tick loop.
func (c *Coordinator) run(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	_, _ = c.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator context cancelled")
			c.stopCron()
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			_, _ = c.runTick(ctx)
		}
	}
}

// runTick executes one guarded tick. Overlapping calls return
// domain.ErrTickInProgress without doing any work.
func (c *Coordinator) runTick(ctx context.Context) (*domain.TickResult, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		c.logger.Debug("tick already in progress, skipping")
		return nil, domain.ErrTickInProgress
	}
	defer c.inProgress.Store(false)

	if c.lock != nil {
		acquired, err := c.lock.Acquire(ctx, tickLockName, c.lockTTL)
		if err != nil {
			c.logger.Warn("failed to acquire tick lock", "error", err)
			return nil, fmt.Errorf("acquire tick lock: %w", err)
		}
		if !acquired {
			c.logger.Debug("tick lock held by another instance, skipping cycle")
			if c.runtime != nil {
				c.runtime.SetStandby()
			}
			return nil, domain.ErrTickLocked
		}
		defer func() {
			if err := c.lock.Release(ctx, tickLockName); err != nil {
				c.logger.Warn("failed to release tick lock", "error", err)
			}
		}()
		defer c.keepLock(ctx)()
	}

	snap, result, tickErr := c.orch.Tick(ctx)
	snap = c.persist(ctx, snap)
	c.publish(snap)

	c.statusMu.Lock()
	c.ticks++
	completed := result.CompletedAt
	c.lastTickAt = &completed
	c.lastTickDuration = result.Duration()
	c.lastError = ""
	if tickErr != nil {
		c.lastError = tickErr.Error()
	}
	c.schedules = c.orch.Schedules()
	c.statusMu.Unlock()

	if c.runtime != nil {
		c.runtime.RecordTick(completed)
	}
	c.metrics.RecordTick(ctx, result.Duration(), tickErr == nil)

	c.logger.Debug("tick completed",
		"sequence", snap.Sequence,
		"public_updated", result.PublicUpdated,
		"portal_updated", result.PortalUpdated,
		"portal_offline", result.PortalOffline,
		"tasks_started", result.TasksStarted,
		"elapsed", result.Duration(),
	)

	return result, tickErr
}

// keepLock extends the tick lock every half TTL until the returned func
// is called.
func (c *Coordinator) keepLock(ctx context.Context) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.lock.Extend(ctx, tickLockName, c.lockTTL); err != nil {
					c.logger.Warn("failed to extend tick lock", "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// persist stores the schedules and snapshot and returns the snapshot to
// publish. When the store already holds a newer sequence, numbering
// resumes after it and the renumbered snapshot is stored instead.
// Failures are logged only.
func (c *Coordinator) persist(ctx context.Context, snap *domain.Snapshot) *domain.Snapshot {
	if c.state == nil {
		return snap
	}
	contractID := c.orch.cfg.Contract.ID
	schedules := c.orch.Schedules()
	if err := c.state.SaveSchedules(ctx, contractID, &schedules); err != nil {
		c.logger.Warn("failed to save schedules", "contract_id", contractID, "error", err)
	}

	err := c.state.SaveSnapshot(ctx, snap)
	if errors.Is(err, domain.ErrStaleSnapshot) {
		stored, gErr := c.state.GetSnapshot(ctx, contractID)
		if gErr != nil {
			c.logger.Warn("failed to resync snapshot sequence", "contract_id", contractID, "error", gErr)
			return snap
		}
		c.logger.Warn("stored snapshot is ahead, resuming its sequence",
			"contract_id", contractID,
			"sequence", snap.Sequence,
			"stored_sequence", stored.Sequence,
		)
		snap = c.orch.Resequence(stored.Sequence)
		err = c.state.SaveSnapshot(ctx, snap)
	}
	if err != nil {
		c.logger.Warn("failed to save snapshot", "contract_id", contractID, "error", err)
	}
	return snap
}

// publish makes snap the current snapshot and pushes it to subscribers.
// Slow subscribers only ever hold the latest value.
func (c *Coordinator) publish(snap *domain.Snapshot) {
	c.snapshot.Store(snap)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Snapshot returns the latest published snapshot.
func (c *Coordinator) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, domain.ErrNotFound
	}
	return snap, nil
}

// Subscribe registers an observer. The channel holds at most the latest
// snapshot and starts with the current one if any.
func (c *Coordinator) Subscribe() (<-chan *domain.Snapshot, func()) {
	ch := make(chan *domain.Snapshot, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	if snap := c.snapshot.Load(); snap != nil {
		ch <- snap
	}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Refresh runs a tick now. Concurrent refresh calls share one tick.
func (c *Coordinator) Refresh(ctx context.Context) (*domain.TickResult, error) {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if !running {
		return nil, domain.ErrNotRunning
	}

	v, err, _ := c.refresh.Do("tick", func() (any, error) {
		// A disconnecting caller must not abort a tick half way.
		return c.runTick(context.WithoutCancel(ctx))
	})
	result, _ := v.(*domain.TickResult)
	return result, err
}

// Status returns a point-in-time view of the coordinator.
func (c *Coordinator) Status(ctx context.Context) (*domain.CoordinatorStatus, error) {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()

	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	return &domain.CoordinatorStatus{
		Running:          running,
		Mode:             c.orch.cfg.Mode,
		Ticks:            c.ticks,
		LastTickAt:       c.lastTickAt,
		LastTickDuration: c.lastTickDuration,
		LastError:        c.lastError,
		Schedules:        c.schedules,
		Tasks:            c.tasks.Handles(),
	}, nil
}

// Backfill starts a consumption history import covering the last days.
func (c *Coordinator) Backfill(ctx context.Context, days int) (*domain.TaskHandle, error) {
	if !c.orch.cfg.Mode.IsPortal() || c.consumption == nil {
		return nil, domain.ErrPortalDisabled
	}
	if days <= 0 || days > domain.MaxBackfillDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, domain.MaxBackfillDays)
	}

	key := fmt.Sprintf("%d@%s", days, c.now().Format(time.RFC3339Nano))
	started := c.tasks.TryStart(domain.TaskConsumptionBackfill, key, func(ctx context.Context) error {
		_, err := c.consumption.Backfill(ctx, days)
		return err
	})
	if !started {
		return nil, domain.ErrTaskRunning
	}

	c.logger.Info("consumption backfill started", "task", domain.TaskConsumptionBackfill, "days", days)

	handle, _ := c.tasks.Handle(domain.TaskConsumptionBackfill)
	return &handle, nil
}

// CancelTask cancels a running background task.
func (c *Coordinator) CancelTask(ctx context.Context, name string) error {
	if !c.tasks.Cancel(name) {
		return fmt.Errorf("%w: no running task %q", domain.ErrNotFound, name)
	}
	c.logger.Info("background task cancellation requested", "task", name)
	return nil
}

// IsRunning reports whether the tick loop is active.
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}
