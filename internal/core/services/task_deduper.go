package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/telemetry"
)

// TaskFunc is the body of a background task.
type TaskFunc func(ctx context.Context) error

// TaskDeduperConfig holds configuration for the task deduper.
type TaskDeduperConfig struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics // Optional
	Now     func() time.Time   // Clock, defaults to time.Now
}

// TaskDeduper runs named background tasks with at most one run in flight
// per name. A task restarts only when its trigger key changed since the
// last start.
type TaskDeduper struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	entries map[string]*taskEntry
	closed  bool
}

type taskEntry struct {
	handle  domain.TaskHandle
	lastKey string
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTaskDeduper creates a new task deduper.
func NewTaskDeduper(cfg TaskDeduperConfig) *TaskDeduper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TaskDeduper{
		logger:  logger,
		metrics: cfg.Metrics,
		now:     now,
		baseCtx: ctx,
		cancel:  cancel,
		entries: make(map[string]*taskEntry),
	}
}

// TryStart starts fn under name unless a run is in flight or triggerKey
// equals the key of the previous start. It reports whether fn was started.
func (d *TaskDeduper) TryStart(name, triggerKey string, fn TaskFunc) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	e, ok := d.entries[name]
	if !ok {
		e = &taskEntry{handle: *domain.NewTaskHandle(name)}
		d.entries[name] = e
	}

	if e.handle.IsRunning() {
		d.logger.Debug("background task already running", "task", name, "run_id", e.handle.RunID)
		return false
	}
	if e.started && e.lastKey == triggerKey {
		d.logger.Debug("background task trigger unchanged", "task", name, "trigger_key", triggerKey)
		return false
	}

	ctx, cancel := context.WithCancel(d.baseCtx)
	runID := uuid.NewString()
	done := make(chan struct{})

	e.handle.MarkRunning(runID, triggerKey, d.now())
	e.lastKey = triggerKey
	e.started = true
	e.cancel = cancel
	e.done = done

	d.logger.Debug("background task started", "task", name, "run_id", runID, "trigger_key", triggerKey)

	go d.run(ctx, cancel, e, done, fn)
	return true
}

func (d *TaskDeduper) run(ctx context.Context, cancel context.CancelFunc, e *taskEntry, done chan struct{}, fn TaskFunc) {
	defer close(done)
	defer cancel()

	err := safeRun(ctx, fn)

	d.mu.Lock()
	cancelled := ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled))
	if cancelled {
		e.handle.MarkCancelled(d.now())
	} else {
		e.handle.MarkCompleted(err, d.now())
	}
	e.cancel = nil
	handle := e.handle
	d.mu.Unlock()

	d.metrics.RecordTaskEnd(context.Background(), handle.Name, string(handle.State), handle.Duration())

	switch {
	case cancelled:
		d.logger.Info("background task cancelled", "task", handle.Name, "run_id", handle.RunID)
	case err != nil:
		d.logger.Error("background task failed",
			"task", handle.Name,
			"run_id", handle.RunID,
			"error", err,
			"kind", domain.ClassifyError(err),
		)
	default:
		d.logger.Debug("background task completed",
			"task", handle.Name,
			"run_id", handle.RunID,
			"elapsed", handle.Duration(),
		)
	}
}

func safeRun(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Handle returns a copy of the handle for name.
func (d *TaskDeduper) Handle(name string) (domain.TaskHandle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok {
		return domain.TaskHandle{}, false
	}
	return e.handle, true
}

// Handles returns copies of all handles sorted by name.
func (d *TaskDeduper) Handles() []domain.TaskHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	handles := make([]domain.TaskHandle, 0, len(d.entries))
	for _, e := range d.entries {
		handles = append(handles, e.handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Name < handles[j].Name })
	return handles
}

// Cancel requests cancellation of the running task name.
// It reports whether a running task was found.
func (d *TaskDeduper) Cancel(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok || !e.handle.IsRunning() || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Wait blocks until the current run of name finishes or ctx is done.
func (d *TaskDeduper) Wait(ctx context.Context, name string) error {
	d.mu.Lock()
	e, ok := d.entries[name]
	var done chan struct{}
	if ok {
		done = e.done
	}
	d.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown refuses new starts, cancels every running task and waits for
// them to return or for ctx to expire.
func (d *TaskDeduper) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	pending := make(map[string]chan struct{})
	for name, e := range d.entries {
		if e.handle.IsRunning() {
			pending[name] = e.done
		}
	}
	d.mu.Unlock()

	d.cancel()

	g, gctx := errgroup.WithContext(ctx)
	for name, done := range pending {
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("task %s did not stop: %w", name, gctx.Err())
			}
		})
	}
	return g.Wait()
}
