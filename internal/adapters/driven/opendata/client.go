// Package opendata implements the public peak feed client backed by the
// Hydro-Québec open data portal.
package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PublicFeedClient = (*Client)(nil)

const (
	// DefaultBaseURL is the open data portal root.
	DefaultBaseURL = "https://donnees.hydroquebec.com"

	recordsPath = "/api/explore/v2.1/catalog/datasets/evenements-pointe/records"
	pageLimit   = 100
)

// Config holds configuration for the open data client.
type Config struct {
	BaseURL         string
	Offer           string        // Peak offer to keep, e.g. "CPC-D"; empty keeps all
	PreheatDuration time.Duration // Reported with the feed state
	HTTPClient      *http.Client
	Timeout         time.Duration // Per request (default: 30s)
	MaxRetries      uint          // Attempts per fetch (default: 3)
	RetryBudget     time.Duration // Total retry time (default: 1m)
	InitialBackoff  time.Duration // First retry delay (default: backoff package default)
	Logger          *slog.Logger
	Now             func() time.Time
}

// Client fetches announced peak events.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	offer       string
	preheat     time.Duration
	maxRetries  uint
	retryBudget time.Duration
	initialWait time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewClient creates a new open data client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
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
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	budget := cfg.RetryBudget
	if budget == 0 {
		budget = time.Minute
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
		httpClient:  httpClient,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		offer:       cfg.Offer,
		preheat:     cfg.PreheatDuration,
		maxRetries:  maxRetries,
		retryBudget: budget,
		initialWait: cfg.InitialBackoff,
		logger:      logger,
		now:         now,
	}
}

// recordsResponse is the explore API envelope.
type recordsResponse struct {
	TotalCount int          `json:"total_count"`
	Results    []peakRecord `json:"results"`
}

// peakRecord is one announced peak period.
type peakRecord struct {
	Offer  string    `json:"offre"`
	Start  time.Time `json:"datedebut"`
	End    time.Time `json:"datefin"`
	Slot   string    `json:"plagehoraire"`
	Sector string    `json:"secteurclient"`
}

// FetchPeakData returns the announced peak events for the configured offer.
// Server errors and rate limiting are retried with exponential backoff.
func (c *Client) FetchPeakData(ctx context.Context) (*domain.PublicFeedState, error) {
	query := url.Values{}
	query.Set("order_by", "datedebut desc")
	query.Set("limit", strconv.Itoa(pageLimit))
	if c.offer != "" {
		query.Set("refine", "offre:"+c.offer)
	}
	endpoint := c.baseURL + recordsPath + "?" + query.Encode()

	policy := backoff.NewExponentialBackOff()
	if c.initialWait > 0 {
		policy.InitialInterval = c.initialWait
	}

	body, err := backoff.Retry(ctx, func() (*recordsResponse, error) {
		return c.fetchOnce(ctx, endpoint)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries),
		backoff.WithMaxElapsedTime(c.retryBudget),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("retrying open data request", "error", err, "next", next)
		}),
	)
	if err != nil {
		return nil, err
	}

	events := make([]domain.PeakEvent, 0, len(body.Results))
	for _, r := range body.Results {
		if c.offer != "" && r.Offer != c.offer {
			continue
		}
		if !r.End.After(r.Start) {
			c.logger.Debug("ignoring malformed peak record", "offer", r.Offer, "start", r.Start)
			continue
		}
		events = append(events, domain.PeakEvent{
			Offer: r.Offer,
			Start: r.Start,
			End:   r.End,
			Slot:  domain.TimeSlot(strings.ToUpper(r.Slot)),
		})
	}

	return domain.NewPublicFeedState(c.offer, events, c.preheat, c.now()), nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (*recordsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		httpErr := &domain.HTTPError{
			Method:     req.Method,
			URL:        recordsPath,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
		}
		if !httpErr.IsRetryable() {
			return nil, backoff.Permanent(httpErr)
		}
		return nil, httpErr
	}

	var body recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode peak records: %w", err))
	}
	return &body, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
