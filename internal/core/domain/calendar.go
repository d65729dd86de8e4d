package domain

import (
	"fmt"
	"time"
)

// CalendarEvent mirrors a peak event into a contract calendar.
type CalendarEvent struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	Summary    string    `json:"summary"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Offer      string    `json:"offer"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewCalendarEvent builds the calendar entry for a peak event.
func NewCalendarEvent(contractID string, e PeakEvent, now time.Time) *CalendarEvent {
	return &CalendarEvent{
		ID:         contractID + ":" + e.Key(),
		ContractID: contractID,
		Summary:    fmt.Sprintf("Peak event %s", e.Offer),
		Start:      e.Start,
		End:        e.End,
		Offer:      e.Offer,
		UpdatedAt:  now,
	}
}
