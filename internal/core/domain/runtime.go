package domain

import (
	"sync"
	"time"
)

// RuntimeConfig tracks how this instance was wired and whether it is
// currently the active coordinator. Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	RunMode      string // "all", "coordinator" or "api"
	StateBackend string // "redis", "postgres" or "memory"
	LockBackend  string // "redis", "postgres" or "" when no lock is used

	// Dynamic
	active     bool
	lastTickAt time.Time
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(runMode, stateBackend, lockBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		RunMode:      runMode,
		StateBackend: stateBackend,
		LockBackend:  lockBackend,
	}
}

// RunsCoordinator reports whether this instance runs the update tick.
func (c *RuntimeConfig) RunsCoordinator() bool {
	return c.RunMode != "api"
}

// IsActive reports whether this instance ran the most recent tick.
func (c *RuntimeConfig) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// LastTickAt returns when this instance last completed a tick.
func (c *RuntimeConfig) LastTickAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTickAt
}

// RecordTick marks a completed tick.
func (c *RuntimeConfig) RecordTick(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.lastTickAt = at
}

// SetStandby marks that another instance holds the tick lock.
func (c *RuntimeConfig) SetStandby() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}
