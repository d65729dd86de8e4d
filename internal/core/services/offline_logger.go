package services

import (
	"sync"
	"time"
)

// PortalOfflineKey is the backoff key for portal availability notices.
const PortalOfflineKey = "portal-offline"

// OfflineBackoffLogger limits repeated "source unavailable" notices to
// one per cooldown and key.
type OfflineBackoffLogger struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewOfflineBackoffLogger creates an empty logger state.
func NewOfflineBackoffLogger() *OfflineBackoffLogger {
	return &OfflineBackoffLogger{last: make(map[string]time.Time)}
}

// ShouldLog reports whether a notice for key may be emitted at now.
// When it returns true, now is recorded as the last notice time.
func (l *OfflineBackoffLogger) ShouldLog(key string, now time.Time, cooldown time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	l.last[key] = now
	return true
}
