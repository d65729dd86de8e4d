package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// testDB connects to HYDROQC_TEST_DATABASE_URL or skips.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("HYDROQC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HYDROQC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStateStore_Postgres(t *testing.T) {
	db := testDB(t)
	store := NewStateStore(db)
	ctx := context.Background()
	contractID := "test-" + uuid.NewString()

	_, err := store.GetSnapshot(ctx, contractID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	at := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	var schedules domain.Schedules
	schedules.Portal.Advance(at)
	require.NoError(t, store.SaveSchedules(ctx, contractID, &schedules))

	// Schedules alone leave the snapshot column empty
	_, err = store.GetSnapshot(ctx, contractID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, store.SaveSnapshot(ctx, &domain.Snapshot{Sequence: 7, Contract: domain.ContractIdentity{ID: contractID}, LastError: "seven"}))
	err = store.SaveSnapshot(ctx, &domain.Snapshot{Sequence: 6, Contract: domain.ContractIdentity{ID: contractID}, LastError: "six"})
	assert.True(t, errors.Is(err, domain.ErrStaleSnapshot))
	// Same sequence rewrites
	require.NoError(t, store.SaveSnapshot(ctx, &domain.Snapshot{Sequence: 7, Contract: domain.ContractIdentity{ID: contractID}, LastError: "seven"}))

	got, err := store.GetSnapshot(ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, "seven", got.LastError)

	gotSchedules, err := store.GetSchedules(ctx, contractID)
	require.NoError(t, err)
	assert.True(t, gotSchedules.Portal.LastUpdate.Equal(at))
}

func TestCalendarStore_Postgres(t *testing.T) {
	db := testDB(t)
	store := NewCalendarStore(db)
	ctx := context.Background()
	contractID := "test-" + uuid.NewString()

	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	past := domain.NewCalendarEvent(contractID, domain.PeakEvent{Offer: "CPC-D", Start: now.Add(-5 * time.Hour), End: now.Add(-2 * time.Hour)}, now)
	next := domain.NewCalendarEvent(contractID, domain.PeakEvent{Offer: "CPC-D", Start: now.Add(24 * time.Hour), End: now.Add(27 * time.Hour)}, now)
	require.NoError(t, store.Upsert(ctx, []*domain.CalendarEvent{next, past}))

	events, err := store.List(ctx, contractID, now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, next.ID, events[0].ID)

	require.NoError(t, store.Delete(ctx, []string{next.ID, past.ID}))
	events, err = store.List(ctx, contractID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestConsumptionStore_Postgres(t *testing.T) {
	db := testDB(t)
	store := NewConsumptionStore(db)
	ctx := context.Background()
	contractID := "test-" + uuid.NewString()

	_, err := store.LatestHour(ctx, contractID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	hour := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	temp := -18.0
	n, err := store.Save(ctx, []domain.ConsumptionRecord{
		{ContractID: contractID, HourStart: hour, KWh: 2.5, Temperature: &temp},
		{ContractID: contractID, HourStart: hour.Add(time.Hour), KWh: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, err := store.LatestHour(ctx, contractID)
	require.NoError(t, err)
	assert.True(t, latest.Equal(hour.Add(time.Hour)))

	records, err := store.Range(ctx, contractID, hour, hour.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Temperature)
	assert.Equal(t, temp, *records[0].Temperature)
	assert.Nil(t, records[1].Temperature)
}

func TestAdvisoryLock_Postgres(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a, b := NewAdvisoryLock(db), NewAdvisoryLock(db)
	name := "test-" + uuid.NewString()

	ok, err := a.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder should be refused")

	require.NoError(t, a.Release(ctx, name))
	ok, err = b.Acquire(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, name))
}
