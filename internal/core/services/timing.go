package services

import (
	"log/slog"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// DefaultLocationName is the time zone all windows are evaluated in.
const DefaultLocationName = "America/Toronto"

// Polling intervals per source and window.
const (
	PublicActiveInterval   = 5 * time.Minute
	PublicInactiveInterval = time.Hour
	PortalActiveInterval   = time.Hour
	PortalInactiveInterval = 3 * time.Hour

	// hourBoundaryGrace is how far past the top of the hour a new-hour
	// refresh of the public feed is still forced.
	hourBoundaryGrace = 5
)

// Decision reasons reported for debug logging.
const (
	ReasonOffSeason       = "off-season"
	ReasonNeverUpdated    = "never updated"
	ReasonHourBoundary    = "new hour"
	ReasonIntervalElapsed = "interval elapsed"
	ReasonTooSoon         = "too soon since last update"
)

// Decision is the outcome of a timing evaluation.
type Decision struct {
	Due      bool
	Reason   string
	Interval time.Duration
}

// LogAttrs returns the decision as slog attributes.
func (d Decision) LogAttrs() []any {
	return []any{"due", d.Due, "reason", d.Reason, "interval", d.Interval}
}

// TimingPolicy decides when each upstream source should be polled.
// Methods are pure functions of their arguments and safe for concurrent use.
type TimingPolicy struct {
	loc *time.Location
}

// NewTimingPolicy creates a policy evaluating in loc.
// A nil loc uses DefaultLocation.
func NewTimingPolicy(loc *time.Location) *TimingPolicy {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &TimingPolicy{loc: loc}
}

// DefaultLocation loads America/Toronto, falling back to UTC when the
// zone database is missing.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultLocationName)
	if err != nil {
		slog.Warn("time zone database unavailable, using UTC", "zone", DefaultLocationName, "error", err)
		return time.UTC
	}
	return loc
}

// Location returns the evaluation location.
func (p *TimingPolicy) Location() *time.Location {
	return p.loc
}

// Local converts t into the evaluation location.
func (p *TimingPolicy) Local(t time.Time) time.Time {
	return t.In(p.loc)
}

// IsSeasonallyActive reports whether now falls in the winter peak season
// (December through March).
func (p *TimingPolicy) IsSeasonallyActive(now time.Time) bool {
	switch p.Local(now).Month() {
	case time.December, time.January, time.February, time.March:
		return true
	}
	return false
}

// IsPublicActiveWindow reports whether now is between 11:00 and 18:00,
// when peak announcements are usually published.
func (p *TimingPolicy) IsPublicActiveWindow(now time.Time) bool {
	h := p.Local(now).Hour()
	return h >= 11 && h < 18
}

// IsPortalActiveWindow reports whether now is between 00:00 and 08:00,
// when the portal refreshes overnight consumption.
func (p *TimingPolicy) IsPortalActiveWindow(now time.Time) bool {
	h := p.Local(now).Hour()
	return h < 8
}

// ShouldUpdatePublic reports whether the public feed is due.
func (p *TimingPolicy) ShouldUpdatePublic(now time.Time, s domain.SourceSchedule) bool {
	return p.PublicDecision(now, s).Due
}

// ShouldUpdatePortal reports whether the portal is due.
func (p *TimingPolicy) ShouldUpdatePortal(now time.Time, s domain.SourceSchedule) bool {
	return p.PortalDecision(now, s).Due
}

// PublicDecision evaluates the public feed rules in order: season gate,
// first run, new-hour force, then the window interval.
func (p *TimingPolicy) PublicDecision(now time.Time, s domain.SourceSchedule) Decision {
	interval := PublicInactiveInterval
	if p.IsPublicActiveWindow(now) {
		interval = PublicActiveInterval
	}

	if !p.IsSeasonallyActive(now) {
		return Decision{Due: false, Reason: ReasonOffSeason, Interval: interval}
	}
	if !s.IsSet() {
		return Decision{Due: true, Reason: ReasonNeverUpdated, Interval: interval}
	}

	local := p.Local(now)
	last := p.Local(*s.LastUpdate)
	if local.Minute() < hourBoundaryGrace && last.Hour() != local.Hour() {
		return Decision{Due: true, Reason: ReasonHourBoundary, Interval: interval}
	}

	return elapsedDecision(now, s, interval)
}

// PortalDecision evaluates the portal rules: first run, then the window
// interval. The portal is polled all year.
func (p *TimingPolicy) PortalDecision(now time.Time, s domain.SourceSchedule) Decision {
	interval := PortalInactiveInterval
	if p.IsPortalActiveWindow(now) {
		interval = PortalActiveInterval
	}

	if !s.IsSet() {
		return Decision{Due: true, Reason: ReasonNeverUpdated, Interval: interval}
	}
	return elapsedDecision(now, s, interval)
}

func elapsedDecision(now time.Time, s domain.SourceSchedule, interval time.Duration) Decision {
	if s.Elapsed(now) >= interval {
		return Decision{Due: true, Reason: ReasonIntervalElapsed, Interval: interval}
	}
	return Decision{Due: false, Reason: ReasonTooSoon, Interval: interval}
}
