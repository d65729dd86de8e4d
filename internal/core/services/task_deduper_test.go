package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

func waitTask(t *testing.T, d *TaskDeduper, name string) domain.TaskHandle {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx, name))
	h, ok := d.Handle(name)
	require.True(t, ok)
	return h
}

func TestTaskDeduper_NoDuplicateWhileRunning(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	release := make(chan struct{})
	runs := 0

	fn := func(ctx context.Context) error {
		runs++
		<-release
		return nil
	}

	require.True(t, d.TryStart("x", "5", fn))
	assert.False(t, d.TryStart("x", "5", fn))
	assert.False(t, d.TryStart("x", "5", fn))
	assert.False(t, d.TryStart("x", "6", fn), "running task must not restart even with a new key")

	close(release)
	h := waitTask(t, d, "x")
	assert.Equal(t, domain.TaskStateCompleted, h.State)
	assert.Equal(t, 1, runs)

	assert.True(t, d.TryStart("x", "6", func(ctx context.Context) error { return nil }))
	waitTask(t, d, "x")
}

func TestTaskDeduper_SameKeyAfterCompletion(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	noop := func(ctx context.Context) error { return nil }

	require.True(t, d.TryStart("x", "a", noop))
	waitTask(t, d, "x")

	assert.False(t, d.TryStart("x", "a", noop), "unchanged key must not restart")
	assert.True(t, d.TryStart("x", "b", noop))
	waitTask(t, d, "x")
}

func TestTaskDeduper_FailedTaskCompletes(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	boom := errors.New("boom")

	require.True(t, d.TryStart("x", "1", func(ctx context.Context) error { return boom }))
	h := waitTask(t, d, "x")

	assert.Equal(t, domain.TaskStateCompleted, h.State)
	assert.Equal(t, "boom", h.Error)
	assert.NotNil(t, h.EndedAt)
}

func TestTaskDeduper_PanicCompletesWithError(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})

	require.True(t, d.TryStart("x", "1", func(ctx context.Context) error { panic("bad") }))
	h := waitTask(t, d, "x")

	assert.Equal(t, domain.TaskStateCompleted, h.State)
	assert.Contains(t, h.Error, "panicked")
}

func TestTaskDeduper_Cancel(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	started := make(chan struct{})

	require.True(t, d.TryStart("x", "1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.True(t, d.Cancel("x"))
	h := waitTask(t, d, "x")
	assert.Equal(t, domain.TaskStateCancelled, h.State)
	assert.False(t, d.Cancel("x"))
	assert.False(t, d.Cancel("missing"))
}

func TestTaskDeduper_RunIDs(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	noop := func(ctx context.Context) error { return nil }

	require.True(t, d.TryStart("x", "1", noop))
	first := waitTask(t, d, "x")
	require.True(t, d.TryStart("x", "2", noop))
	second := waitTask(t, d, "x")

	assert.NotEmpty(t, first.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, "2", second.TriggerKey)
}

func TestTaskDeduper_Handles(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	noop := func(ctx context.Context) error { return nil }

	d.TryStart(domain.TaskConsumptionSync, "1", noop)
	d.TryStart(domain.TaskCalendarSync, "1", noop)
	waitTask(t, d, domain.TaskConsumptionSync)
	waitTask(t, d, domain.TaskCalendarSync)

	handles := d.Handles()
	require.Len(t, handles, 2)
	assert.Equal(t, domain.TaskCalendarSync, handles[0].Name)
	assert.Equal(t, domain.TaskConsumptionSync, handles[1].Name)

	_, ok := d.Handle("missing")
	assert.False(t, ok)
}

func TestTaskDeduper_Shutdown(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	started := make(chan struct{})

	require.True(t, d.TryStart("x", "1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	h, _ := d.Handle("x")
	assert.Equal(t, domain.TaskStateCancelled, h.State)
	assert.False(t, d.TryStart("y", "1", func(ctx context.Context) error { return nil }))
}

func TestTaskDeduper_ShutdownDeadline(t *testing.T) {
	d := NewTaskDeduper(TaskDeduperConfig{})
	release := make(chan struct{})
	defer close(release)

	require.True(t, d.TryStart("stubborn", "1", func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
