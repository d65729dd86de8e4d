package mocks

import (
	"context"
	"sync"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Ensure MockPublicFeedClient implements PublicFeedClient
var _ driven.PublicFeedClient = (*MockPublicFeedClient)(nil)

// MockPublicFeedClient returns a fixed state or the result of FetchFn.
type MockPublicFeedClient struct {
	mu     sync.Mutex
	state  *domain.PublicFeedState
	calls  int
	closed bool

	FetchFn func(ctx context.Context) (*domain.PublicFeedState, error)
}

// NewMockPublicFeedClient creates a mock returning state on every fetch.
func NewMockPublicFeedClient(state *domain.PublicFeedState) *MockPublicFeedClient {
	return &MockPublicFeedClient{state: state}
}

func (m *MockPublicFeedClient) FetchPeakData(ctx context.Context) (*domain.PublicFeedState, error) {
	m.mu.Lock()
	m.calls++
	fn := m.FetchFn
	state := m.state
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	if state == nil {
		return &domain.PublicFeedState{}, nil
	}
	return state, nil
}

func (m *MockPublicFeedClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetState replaces the state returned by FetchPeakData.
func (m *MockPublicFeedClient) SetState(state *domain.PublicFeedState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// Calls returns how many times FetchPeakData ran.
func (m *MockPublicFeedClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockPublicFeedClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
