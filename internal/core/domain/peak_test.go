package domain

import (
	"testing"
	"time"
)

func peakAt(day, startHour, endHour int) PeakEvent {
	return PeakEvent{
		Offer: "CPC-D",
		Start: time.Date(2025, 1, day, startHour, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, day, endHour, 0, 0, 0, time.UTC),
	}
}

func TestPeakEvent_IsActive(t *testing.T) {
	e := peakAt(15, 6, 10)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", time.Date(2025, 1, 15, 5, 59, 59, 0, time.UTC), false},
		{"at start", time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC), true},
		{"middle", time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC), true},
		{"at end", time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.IsActive(tt.now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPeakEvent_Key(t *testing.T) {
	a := peakAt(15, 6, 10)
	b := peakAt(15, 6, 10)
	c := peakAt(15, 16, 20)

	if a.Key() != b.Key() {
		t.Error("expected identical events to share a key")
	}
	if a.Key() == c.Key() {
		t.Error("expected different events to have different keys")
	}
	if len(a.Key()) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a.Key()))
	}
}

func TestPublicFeedState(t *testing.T) {
	evening := peakAt(15, 16, 20)
	morning := peakAt(15, 6, 10)
	state := NewPublicFeedState("CPC-D", []PeakEvent{evening, morning}, 2*time.Hour, time.Now())

	if state.EventCount() != 2 {
		t.Fatalf("expected 2 events, got %d", state.EventCount())
	}
	if !state.Events[0].Start.Equal(morning.Start) {
		t.Error("expected events sorted by start time")
	}

	during := time.Date(2025, 1, 15, 7, 0, 0, 0, time.UTC)
	if cur := state.CurrentPeak(during); cur == nil || !cur.Start.Equal(morning.Start) {
		t.Errorf("expected morning peak in progress, got %v", cur)
	}
	if next := state.NextPeak(during); next == nil || !next.Start.Equal(evening.Start) {
		t.Errorf("expected evening peak next, got %v", next)
	}

	if state.InPreheat(time.Date(2025, 1, 15, 13, 59, 0, 0, time.UTC)) {
		t.Error("expected no preheat before 14:00")
	}
	if !state.InPreheat(time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)) {
		t.Error("expected preheat from 14:00")
	}

	if got := len(state.Upcoming(during)); got != 2 {
		t.Errorf("expected 2 upcoming events, got %d", got)
	}
	if got := len(state.Upcoming(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))); got != 1 {
		t.Errorf("expected 1 upcoming event, got %d", got)
	}
}

func TestPublicFeedState_NilSafe(t *testing.T) {
	var state *PublicFeedState
	now := time.Now()

	if state.EventCount() != 0 {
		t.Error("expected zero count")
	}
	if state.CurrentPeak(now) != nil || state.NextPeak(now) != nil {
		t.Error("expected no peaks")
	}
	if state.InPreheat(now) {
		t.Error("expected no preheat")
	}
}
