package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Ensure MockPortalClient implements PortalClient
var _ driven.PortalClient = (*MockPortalClient)(nil)

// MockPortalClient is an in-memory portal. It answers with canned data
// and records every call in order so tests can assert the fetch chain.
type MockPortalClient struct {
	mu             sync.Mutex
	calls          []string
	available      bool
	sessionExpired bool
	closed         bool

	Hierarchy *domain.AccountHierarchy
	Periods   []domain.Period
	Outages   []domain.Outage
	Winter    *domain.WinterCreditData
	Flex      *domain.FlexData
	Peaks     []domain.PeakEvent
	Annual    *domain.AnnualConsumption
	Hourly    []domain.ConsumptionRecord

	// Custom behavior hooks (optional)
	CheckAvailabilityFn      func(ctx context.Context) (bool, error)
	LoginFn                  func(ctx context.Context) error
	FetchAccountHierarchyFn  func(ctx context.Context, customerID, accountID, contractID string) (*domain.AccountHierarchy, error)
	FetchPeriodsFn           func(ctx context.Context, contractID string) ([]domain.Period, error)
	FetchOutagesFn           func(ctx context.Context, contractID string) ([]domain.Outage, error)
	FetchWinterCreditsFn     func(ctx context.Context, contractID string, preheat time.Duration) (*domain.WinterCreditData, error)
	FetchFlexDataFn          func(ctx context.Context, contractID string, preheat time.Duration) (*domain.FlexData, error)
	RefreshPeakDataFn        func(ctx context.Context, contractID string) ([]domain.PeakEvent, error)
	FetchAnnualConsumptionFn func(ctx context.Context, contractID string) (*domain.AnnualConsumption, error)
	FetchHourlyConsumptionFn func(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error)
}

// NewMockPortalClient creates an available portal with a valid session.
func NewMockPortalClient(hierarchy *domain.AccountHierarchy) *MockPortalClient {
	return &MockPortalClient{
		available: true,
		Hierarchy: hierarchy,
	}
}

func (m *MockPortalClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockPortalClient) CheckAvailability(ctx context.Context) (bool, error) {
	m.record("CheckAvailability")
	if m.CheckAvailabilityFn != nil {
		return m.CheckAvailabilityFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available, nil
}

func (m *MockPortalClient) IsSessionExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionExpired
}

func (m *MockPortalClient) Login(ctx context.Context) error {
	m.record("Login")
	if m.LoginFn != nil {
		if err := m.LoginFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionExpired = false
	return nil
}

func (m *MockPortalClient) FetchAccountHierarchy(ctx context.Context, customerID, accountID, contractID string) (*domain.AccountHierarchy, error) {
	m.record("FetchAccountHierarchy")
	if m.FetchAccountHierarchyFn != nil {
		return m.FetchAccountHierarchyFn(ctx, customerID, accountID, contractID)
	}
	if m.Hierarchy == nil {
		return nil, domain.ErrNotFound
	}
	return m.Hierarchy, nil
}

func (m *MockPortalClient) FetchPeriods(ctx context.Context, contractID string) ([]domain.Period, error) {
	m.record("FetchPeriods")
	if m.FetchPeriodsFn != nil {
		return m.FetchPeriodsFn(ctx, contractID)
	}
	return m.Periods, nil
}

func (m *MockPortalClient) FetchOutages(ctx context.Context, contractID string) ([]domain.Outage, error) {
	m.record("FetchOutages")
	if m.FetchOutagesFn != nil {
		return m.FetchOutagesFn(ctx, contractID)
	}
	return m.Outages, nil
}

func (m *MockPortalClient) FetchWinterCredits(ctx context.Context, contractID string, preheat time.Duration) (*domain.WinterCreditData, error) {
	m.record("FetchWinterCredits")
	if m.FetchWinterCreditsFn != nil {
		return m.FetchWinterCreditsFn(ctx, contractID, preheat)
	}
	if m.Winter != nil {
		return m.Winter, nil
	}
	return &domain.WinterCreditData{PreheatDuration: preheat}, nil
}

func (m *MockPortalClient) FetchFlexData(ctx context.Context, contractID string, preheat time.Duration) (*domain.FlexData, error) {
	m.record("FetchFlexData")
	if m.FetchFlexDataFn != nil {
		return m.FetchFlexDataFn(ctx, contractID, preheat)
	}
	if m.Flex != nil {
		return m.Flex, nil
	}
	return &domain.FlexData{PreheatDuration: preheat}, nil
}

func (m *MockPortalClient) RefreshPeakData(ctx context.Context, contractID string) ([]domain.PeakEvent, error) {
	m.record("RefreshPeakData")
	if m.RefreshPeakDataFn != nil {
		return m.RefreshPeakDataFn(ctx, contractID)
	}
	return m.Peaks, nil
}

func (m *MockPortalClient) FetchAnnualConsumption(ctx context.Context, contractID string) (*domain.AnnualConsumption, error) {
	m.record("FetchAnnualConsumption")
	if m.FetchAnnualConsumptionFn != nil {
		return m.FetchAnnualConsumptionFn(ctx, contractID)
	}
	if m.Annual != nil {
		return m.Annual, nil
	}
	return &domain.AnnualConsumption{}, nil
}

func (m *MockPortalClient) FetchHourlyConsumption(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	m.record("FetchHourlyConsumption")
	if m.FetchHourlyConsumptionFn != nil {
		return m.FetchHourlyConsumptionFn(ctx, contractID, from, to)
	}
	var out []domain.ConsumptionRecord
	for _, r := range m.Hourly {
		if !r.HourStart.Before(from) && r.HourStart.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockPortalClient) Close() error {
	m.record("Close")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetAvailable controls CheckAvailability.
func (m *MockPortalClient) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetSessionExpired controls IsSessionExpired.
func (m *MockPortalClient) SetSessionExpired(expired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionExpired = expired
}

// Calls returns the recorded calls in order.
func (m *MockPortalClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times name was called.
func (m *MockPortalClient) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (m *MockPortalClient) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Closed reports whether Close was called.
func (m *MockPortalClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
