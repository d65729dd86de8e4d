package driven

import (
	"context"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

// PortalClient is the authenticated customer portal.
// HTTP and network failures returned by implementations wrap domain.ErrTransport.
type PortalClient interface {
	// CheckAvailability reports whether the portal is accepting requests.
	CheckAvailability(ctx context.Context) (bool, error)

	// IsSessionExpired reports whether Login must be called before fetching.
	IsSessionExpired() bool

	// Login opens a new portal session.
	Login(ctx context.Context) error

	// FetchAccountHierarchy resolves customer, account and contract records.
	FetchAccountHierarchy(ctx context.Context, customerID, accountID, contractID string) (*domain.AccountHierarchy, error)

	// FetchPeriods returns billing period summaries for a contract.
	FetchPeriods(ctx context.Context, contractID string) ([]domain.Period, error)

	// FetchOutages returns current and planned outages for a contract.
	FetchOutages(ctx context.Context, contractID string) ([]domain.Outage, error)

	// Rate-specific extensions

	// FetchWinterCredits returns DCPC winter credit state.
	FetchWinterCredits(ctx context.Context, contractID string, preheat time.Duration) (*domain.WinterCreditData, error)

	// FetchFlexData returns DPC (Flex D) state.
	FetchFlexData(ctx context.Context, contractID string, preheat time.Duration) (*domain.FlexData, error)

	// RefreshPeakData refreshes the contract's critical peak list and returns it.
	RefreshPeakData(ctx context.Context, contractID string) ([]domain.PeakEvent, error)

	// FetchAnnualConsumption returns DT yearly consumption.
	FetchAnnualConsumption(ctx context.Context, contractID string) (*domain.AnnualConsumption, error)

	// FetchHourlyConsumption returns hourly records in [from, to).
	FetchHourlyConsumption(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error)

	// Close ends the session and releases connections.
	Close() error
}
