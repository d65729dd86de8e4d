package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a process-local DistributedLock with expiry.
type Lock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewLock creates a Lock. now defaults to time.Now.
func NewLock(now func() time.Time) *Lock {
	if now == nil {
		now = time.Now
	}
	return &Lock{held: make(map[string]time.Time), nowFn: now}
}

func (l *Lock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if exp, ok := l.held[name]; ok && now.Before(exp) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *Lock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

func (l *Lock) Extend(_ context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; ok {
		l.held[name] = l.nowFn().Add(ttl)
	}
	return nil
}

func (l *Lock) Ping(context.Context) error {
	return nil
}
