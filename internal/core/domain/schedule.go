package domain

import "time"

// Source identifies an upstream data source.
type Source string

const (
	// SourcePublic is the unauthenticated open data peak feed.
	SourcePublic Source = "public"
	// SourcePortal is the authenticated customer portal.
	SourcePortal Source = "portal"
)

// SourceSchedule records when a source was last fetched successfully.
type SourceSchedule struct {
	LastUpdate     *time.Time `json:"last_update,omitempty"`
	LastUpdateHour *int       `json:"last_update_hour,omitempty"`
}

// IsSet reports whether the source has ever been fetched.
func (s SourceSchedule) IsSet() bool {
	return s.LastUpdate != nil
}

// Elapsed returns the time since the last update, or zero if unset.
func (s SourceSchedule) Elapsed(now time.Time) time.Duration {
	if s.LastUpdate == nil {
		return 0
	}
	return now.Sub(*s.LastUpdate)
}

// Advance records a successful fetch at now.
// The timestamp never moves backwards. It returns true when the
// recorded hour changed.
func (s *SourceSchedule) Advance(now time.Time) bool {
	if s.LastUpdate != nil && now.Before(*s.LastUpdate) {
		return false
	}
	t := now
	s.LastUpdate = &t

	hour := now.Hour()
	if s.LastUpdateHour != nil && *s.LastUpdateHour == hour {
		return false
	}
	s.LastUpdateHour = &hour
	return true
}

// Schedules is the persisted scheduling state of a coordinator.
type Schedules struct {
	Public              SourceSchedule `json:"public"`
	Portal              SourceSchedule `json:"portal"`
	LastConsumptionSync *time.Time     `json:"last_consumption_sync,omitempty"`
}
