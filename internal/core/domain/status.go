package domain

import "time"

// TickResult summarises one orchestration pass.
type TickResult struct {
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	PublicUpdated bool      `json:"public_updated"`
	PortalUpdated bool      `json:"portal_updated"`
	PortalOffline bool      `json:"portal_offline"`
	TasksStarted  []string  `json:"tasks_started,omitempty"`
}

// Duration returns how long the tick took.
func (r *TickResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// CoordinatorStatus is a point-in-time view of coordinator health.
type CoordinatorStatus struct {
	Running          bool          `json:"running"`
	Mode             Mode          `json:"mode"`
	Ticks            uint64        `json:"ticks"`
	LastTickAt       *time.Time    `json:"last_tick_at,omitempty"`
	LastTickDuration time.Duration `json:"last_tick_duration"`
	LastError        string        `json:"last_error,omitempty"`
	Schedules        Schedules     `json:"schedules"`
	Tasks            []TaskHandle  `json:"tasks"`
}
