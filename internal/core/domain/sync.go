package domain

import "time"

// SyncStats holds statistics for a background sync run
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// Total returns the number of records written.
func (s SyncStats) Total() int {
	return s.Created + s.Updated + s.Deleted
}

// SyncResult represents the outcome of a background sync run
type SyncResult struct {
	Task     string    `json:"task"`
	RunID    string    `json:"run_id"`
	Success  bool      `json:"success"`
	Stats    SyncStats `json:"stats"`
	Error    string    `json:"error,omitempty"`
	Duration float64   `json:"duration_seconds"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
}
