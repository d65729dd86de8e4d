package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// TimeSlot is the part of the day a peak event covers.
type TimeSlot string

const (
	TimeSlotMorning TimeSlot = "AM"
	TimeSlotEvening TimeSlot = "PM"
)

// PeakEvent is an announced peak period. Transitions happen on the hour.
type PeakEvent struct {
	Offer string    `json:"offer"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Slot  TimeSlot  `json:"slot,omitempty"`
}

// IsActive reports whether now falls within [Start, End).
func (e PeakEvent) IsActive(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// PreheatStart returns when preheating should begin before the event.
func (e PeakEvent) PreheatStart(preheat time.Duration) time.Time {
	return e.Start.Add(-preheat)
}

// Key returns a stable identifier for the event.
func (e PeakEvent) Key() string {
	sum := sha256.Sum256([]byte(e.Offer + "|" + e.Start.UTC().Format(time.RFC3339) + "|" + e.End.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:8])
}

// PublicFeedState is the latest state derived from the public peak feed.
type PublicFeedState struct {
	Offer           string        `json:"offer"`
	Events          []PeakEvent   `json:"events"`
	PreheatDuration time.Duration `json:"preheat_duration"`
	FetchedAt       time.Time     `json:"fetched_at"`
}

// NewPublicFeedState builds a state with events sorted by start time.
func NewPublicFeedState(offer string, events []PeakEvent, preheat time.Duration, fetchedAt time.Time) *PublicFeedState {
	sorted := make([]PeakEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return &PublicFeedState{
		Offer:           offer,
		Events:          sorted,
		PreheatDuration: preheat,
		FetchedAt:       fetchedAt,
	}
}

// EventCount returns the number of known peak events.
func (s *PublicFeedState) EventCount() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

// CurrentPeak returns the event in progress at now, if any.
func (s *PublicFeedState) CurrentPeak(now time.Time) *PeakEvent {
	if s == nil {
		return nil
	}
	for i := range s.Events {
		if s.Events[i].IsActive(now) {
			return &s.Events[i]
		}
	}
	return nil
}

// NextPeak returns the earliest event starting after now, if any.
func (s *PublicFeedState) NextPeak(now time.Time) *PeakEvent {
	if s == nil {
		return nil
	}
	for i := range s.Events {
		if s.Events[i].Start.After(now) {
			return &s.Events[i]
		}
	}
	return nil
}

// InPreheat reports whether now is within the preheat period of the next peak.
func (s *PublicFeedState) InPreheat(now time.Time) bool {
	next := s.NextPeak(now)
	if next == nil {
		return false
	}
	return !now.Before(next.PreheatStart(s.PreheatDuration))
}

// Upcoming returns events that have not ended at now.
func (s *PublicFeedState) Upcoming(now time.Time) []PeakEvent {
	if s == nil {
		return nil
	}
	var out []PeakEvent
	for _, e := range s.Events {
		if e.End.After(now) {
			out = append(out, e)
		}
	}
	return out
}
