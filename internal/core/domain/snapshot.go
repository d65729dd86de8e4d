package domain

import "time"

// Snapshot is the aggregate published after every tick.
// A published snapshot is never mutated; each tick publishes a new value.
type Snapshot struct {
	Sequence        uint64           `json:"sequence"`
	Mode            Mode             `json:"mode"`
	Contract        ContractIdentity `json:"contract"`
	Public          *PublicFeedState `json:"public,omitempty"`
	Portal          *PortalData      `json:"portal,omitempty"`
	PortalAvailable *bool            `json:"portal_available,omitempty"`
	LastSuccessAt   *time.Time       `json:"last_success_at,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	LastErrorKind   ErrorKind        `json:"last_error_kind,omitempty"`
	PublishedAt     time.Time        `json:"published_at"`
}

// HasPortalData reports whether authenticated fields are populated.
func (s *Snapshot) HasPortalData() bool {
	return s != nil && s.Portal != nil
}

// Next returns a copy of s with the sequence incremented and the
// error fields cleared. Nested pointers are shared since they are
// never mutated after publication.
func (s *Snapshot) Next(publishedAt time.Time) *Snapshot {
	next := *s
	next.Sequence++
	next.LastError = ""
	next.LastErrorKind = ""
	next.PublishedAt = publishedAt
	return &next
}
