// Package portal implements the authenticated customer portal client.
//
// Sessions are opened with an OAuth2 password grant. The access token is a
// JWT whose exp claim drives IsSessionExpired; the signature is not checked
// since the portal is the only party that consumes it.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PortalClient = (*Client)(nil)

const (
	// DefaultBaseURL is the customer portal API root.
	DefaultBaseURL = "https://session.hydroquebec.com/portail"

	tokenPath  = "/oauth2/token"
	statusPath = "/api/v1/status"

	// expirySkew renews sessions slightly before the token expires.
	expirySkew = 30 * time.Second
)

// Config holds configuration for the portal client.
type Config struct {
	BaseURL    string
	ClientID   string
	Username   string
	Password   string
	HTTPClient *http.Client
	Timeout    time.Duration // Per request (default: 30s)
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client talks to the customer portal. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	oauth      *oauth2.Config
	username   string
	password   string
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	token     *oauth2.Token
	expiresAt time.Time
}

// NewClient creates a new portal client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
		now:      now,
	}
}

// CheckAvailability asks the portal whether it is accepting requests.
// A portal that answers 503 is offline, not failing.
func (c *Client) CheckAvailability(ctx context.Context) (bool, error) {
	var status struct {
		Available bool   `json:"available"`
		Message   string `json:"message,omitempty"`
	}
	err := c.doJSON(ctx, http.MethodGet, statusPath, nil, false, &status)
	if err != nil {
		var httpErr *domain.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusServiceUnavailable {
			return false, nil
		}
		return false, err
	}
	if !status.Available {
		c.logger.Debug("portal reports maintenance", "message", status.Message)
	}
	return status.Available, nil
}

// IsSessionExpired reports whether Login must be called before fetching.
func (c *Client) IsSessionExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return true
	}
	if c.expiresAt.IsZero() {
		return false
	}
	return !c.now().Add(expirySkew).Before(c.expiresAt)
}

// Login opens a new session with the password grant.
func (c *Client) Login(ctx context.Context) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.PasswordCredentialsToken(ctx, c.username, c.password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return fmt.Errorf("portal login: %w", &domain.HTTPError{
				Method:     http.MethodPost,
				URL:        tokenPath,
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       retrieveErr.ErrorCode,
			})
		}
		return fmt.Errorf("portal login: %w: %w", domain.ErrTransport, err)
	}

	expiresAt := tokenExpiry(token)

	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.logger.Debug("portal session opened", "expires_at", expiresAt)
	return nil
}

// tokenExpiry reads exp from a JWT access token, falling back to expires_in.
func tokenExpiry(token *oauth2.Token) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return token.Expiry
}

// FetchAccountHierarchy resolves the customer, account and contract records.
func (c *Client) FetchAccountHierarchy(ctx context.Context, customerID, accountID, contractID string) (*domain.AccountHierarchy, error) {
	path := fmt.Sprintf("/api/v1/customers/%s/accounts/%s/contracts/%s",
		url.PathEscape(customerID), url.PathEscape(accountID), url.PathEscape(contractID))

	var h domain.AccountHierarchy
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &h); err != nil {
		return nil, err
	}
	if h.Contract.ID == "" {
		return nil, fmt.Errorf("%w: contract %s not in account %s", domain.ErrNotFound, contractID, accountID)
	}
	return &h, nil
}

// FetchPeriods returns billing period summaries.
func (c *Client) FetchPeriods(ctx context.Context, contractID string) ([]domain.Period, error) {
	var periods []domain.Period
	if err := c.doJSON(ctx, http.MethodGet, contractPath(contractID, "periods"), nil, true, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

// FetchOutages returns current and planned outages.
func (c *Client) FetchOutages(ctx context.Context, contractID string) ([]domain.Outage, error) {
	var outages []domain.Outage
	if err := c.doJSON(ctx, http.MethodGet, contractPath(contractID, "outages"), nil, true, &outages); err != nil {
		return nil, err
	}
	return outages, nil
}

// FetchWinterCredits returns the DCPC winter credit state.
func (c *Client) FetchWinterCredits(ctx context.Context, contractID string, preheat time.Duration) (*domain.WinterCreditData, error) {
	var data domain.WinterCreditData
	if err := c.doJSON(ctx, http.MethodGet, contractPath(contractID, "winter-credits"), nil, true, &data); err != nil {
		return nil, err
	}
	data.PreheatDuration = preheat
	data.RefreshedAt = c.now()
	return &data, nil
}

// FetchFlexData returns the Flex D state.
func (c *Client) FetchFlexData(ctx context.Context, contractID string, preheat time.Duration) (*domain.FlexData, error) {
	var data domain.FlexData
	if err := c.doJSON(ctx, http.MethodGet, contractPath(contractID, "flex"), nil, true, &data); err != nil {
		return nil, err
	}
	data.PreheatDuration = preheat
	data.RefreshedAt = c.now()
	return &data, nil
}

// RefreshPeakData asks the portal to recompute the contract's critical peaks.
func (c *Client) RefreshPeakData(ctx context.Context, contractID string) ([]domain.PeakEvent, error) {
	var peaks []domain.PeakEvent
	if err := c.doJSON(ctx, http.MethodPost, contractPath(contractID, "peaks/refresh"), nil, true, &peaks); err != nil {
		return nil, err
	}
	return peaks, nil
}

// FetchAnnualConsumption returns DT yearly consumption.
func (c *Client) FetchAnnualConsumption(ctx context.Context, contractID string) (*domain.AnnualConsumption, error) {
	var data domain.AnnualConsumption
	if err := c.doJSON(ctx, http.MethodGet, contractPath(contractID, "consumption/annual"), nil, true, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// FetchHourlyConsumption returns hourly records in [from, to).
func (c *Client) FetchHourlyConsumption(ctx context.Context, contractID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	query := url.Values{}
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))

	var records []domain.ConsumptionRecord
	if err := c.doJSON(ctx, http.MethodGet, contractPath(contractID, "consumption/hourly"), query, true, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Close drops the session and releases idle connections.
func (c *Client) Close() error {
	c.mu.Lock()
	c.token = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
	return nil
}

func contractPath(contractID, suffix string) string {
	return "/api/v1/contracts/" + url.PathEscape(contractID) + "/" + suffix
}

// doJSON performs a request and decodes a JSON response into out.
// Non-2xx responses return *domain.HTTPError; a 401 also drops the session.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, authed bool, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if authed {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == nil {
			return fmt.Errorf("%w: no portal session", domain.ErrUnauthorized)
		}
		token.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = nil
		c.mu.Unlock()
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.HTTPError{
			Method:     method,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
