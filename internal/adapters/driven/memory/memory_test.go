package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

func TestStateStore(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	_, err := store.GetSchedules(ctx, "c1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = store.GetSnapshot(ctx, "c1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var sch domain.Schedules
	sch.Public.Advance(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveSchedules(ctx, "c1", &sch))

	// Mutating the caller's copy does not leak into the store
	sch.Public.LastUpdate = nil
	got, err := store.GetSchedules(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Public.IsSet())

	require.NoError(t, store.SaveSnapshot(ctx, &domain.Snapshot{Sequence: 2, Contract: domain.ContractIdentity{ID: "c1"}}))
	err = store.SaveSnapshot(ctx, &domain.Snapshot{Sequence: 1, Contract: domain.ContractIdentity{ID: "c1"}})
	assert.True(t, errors.Is(err, domain.ErrStaleSnapshot))
	snap, err := store.GetSnapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Sequence)

	assert.True(t, errors.Is(store.SaveSnapshot(ctx, &domain.Snapshot{}), domain.ErrInvalidInput))
}

func TestCalendarStore(t *testing.T) {
	store := NewCalendarStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	later := domain.NewCalendarEvent("c1", domain.PeakEvent{Offer: "CPC-D", Start: now.Add(48 * time.Hour), End: now.Add(51 * time.Hour)}, now)
	sooner := domain.NewCalendarEvent("c1", domain.PeakEvent{Offer: "CPC-D", Start: now.Add(24 * time.Hour), End: now.Add(27 * time.Hour)}, now)
	ended := domain.NewCalendarEvent("c1", domain.PeakEvent{Offer: "CPC-D", Start: now.Add(-4 * time.Hour), End: now.Add(-time.Hour)}, now)
	other := domain.NewCalendarEvent("c2", domain.PeakEvent{Offer: "CPC-D", Start: now.Add(24 * time.Hour), End: now.Add(27 * time.Hour)}, now)
	require.NoError(t, store.Upsert(ctx, []*domain.CalendarEvent{later, sooner, ended, other}))

	events, err := store.List(ctx, "c1", now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, sooner.ID, events[0].ID)
	assert.Equal(t, later.ID, events[1].ID)

	require.NoError(t, store.Delete(ctx, []string{sooner.ID}))
	events, err = store.List(ctx, "c1", now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, later.ID, events[0].ID)
}

func TestConsumptionStore(t *testing.T) {
	store := NewConsumptionStore()
	ctx := context.Background()
	hour := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	_, err := store.LatestHour(ctx, "c1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	n, err := store.Save(ctx, []domain.ConsumptionRecord{
		{ContractID: "c1", HourStart: hour.Add(time.Hour), KWh: 2},
		{ContractID: "c1", HourStart: hour, KWh: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Saving the same hour again replaces it
	_, err = store.Save(ctx, []domain.ConsumptionRecord{{ContractID: "c1", HourStart: hour, KWh: 1.5}})
	require.NoError(t, err)

	latest, err := store.LatestHour(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, latest.Equal(hour.Add(time.Hour)))

	records, err := store.Range(ctx, "c1", hour, hour.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1.5, records[0].KWh)

	_, err = store.Save(ctx, []domain.ConsumptionRecord{{HourStart: hour}})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestLock(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	lock := NewLock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "tick", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = lock.Acquire(ctx, "tick", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = lock.Acquire(ctx, "tick", time.Minute)
	assert.True(t, ok, "expired lock should be free")

	require.NoError(t, lock.Release(ctx, "tick"))
	ok, _ = lock.Acquire(ctx, "tick", time.Minute)
	assert.True(t, ok)
}
