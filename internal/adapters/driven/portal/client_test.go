package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

var testNow = time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC)

type fakePortal struct {
	mux       *http.ServeMux
	available atomic.Bool
	logins    atomic.Int32
	tokenTTL  time.Duration
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "customer",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("portal-secret"))
	require.NoError(t, err)
	return signed
}

func newFakePortal(t *testing.T) (*fakePortal, *Client) {
	t.Helper()
	fp := &fakePortal{mux: http.NewServeMux(), tokenTTL: time.Hour}
	fp.available.Store(true)

	fp.mux.HandleFunc("POST "+tokenPath, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "password" ||
			r.PostForm.Get("username") != "user@example.com" ||
			r.PostForm.Get("password") != "hunter2" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		fp.logins.Add(1)
		writeJSON(w, map[string]any{
			"access_token": signedToken(t, testNow.Add(fp.tokenTTL)),
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	fp.mux.HandleFunc("GET "+statusPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"available": fp.available.Load()})
	})
	fp.mux.HandleFunc("GET /api/v1/customers/{customer}/accounts/{account}/contracts/{contract}", fp.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, domain.AccountHierarchy{
			Customer: domain.Customer{ID: r.PathValue("customer")},
			Account:  domain.Account{ID: r.PathValue("account"), Balance: 42.5},
			Contract: domain.Contract{ID: r.PathValue("contract"), Rate: "D", RateOption: "CPC"},
		})
	}))
	fp.mux.HandleFunc("GET /api/v1/contracts/{contract}/periods", fp.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []domain.Period{{Days: 30, ConsumptionKWh: 1200, Current: true}})
	}))
	fp.mux.HandleFunc("GET /api/v1/contracts/{contract}/winter-credits", fp.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, domain.WinterCreditData{CumulatedCredit: 12.3})
	}))
	fp.mux.HandleFunc("POST /api/v1/contracts/{contract}/peaks/refresh", fp.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []domain.PeakEvent{{Offer: "TPC-DPC", Start: testNow, End: testNow.Add(4 * time.Hour)}})
	}))
	fp.mux.HandleFunc("GET /api/v1/contracts/{contract}/consumption/hourly", fp.authed(func(w http.ResponseWriter, r *http.Request) {
		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		assert.NoError(t, err)
		writeJSON(w, []domain.ConsumptionRecord{{HourStart: from, KWh: 1.5}, {HourStart: from.Add(time.Hour), KWh: 2}})
	}))

	srv := httptest.NewServer(fp.mux)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:  srv.URL,
		ClientID: "hydroqc",
		Username: "user@example.com",
		Password: "hunter2",
		Now:      func() time.Time { return testNow },
	})
	return fp, client
}

func (fp *fakePortal) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(r.Header.Get("Authorization")) < len("Bearer x") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginAndSessionExpiry(t *testing.T) {
	_, client := newFakePortal(t)

	assert.True(t, client.IsSessionExpired(), "no session before login")
	require.NoError(t, client.Login(context.Background()))
	assert.False(t, client.IsSessionExpired())

	client.now = func() time.Time { return testNow.Add(time.Hour - 10*time.Second) }
	assert.True(t, client.IsSessionExpired(), "session inside the renewal skew counts as expired")
}

func TestLogin_BadCredentials(t *testing.T) {
	_, client := newFakePortal(t)
	client.password = "wrong"

	err := client.Login(context.Background())
	require.Error(t, err)

	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, domain.ErrorKindTransport, domain.ClassifyError(err))
	assert.True(t, client.IsSessionExpired())
}

func TestCheckAvailability(t *testing.T) {
	fp, client := newFakePortal(t)

	ok, err := client.CheckAvailability(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	fp.available.Store(false)
	ok, err = client.CheckAvailability(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAvailability_ServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	ok, err := client.CheckAvailability(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchesRequireSession(t *testing.T) {
	_, client := newFakePortal(t)

	_, err := client.FetchPeriods(context.Background(), "c1")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestFetchAccountHierarchy(t *testing.T) {
	_, client := newFakePortal(t)
	require.NoError(t, client.Login(context.Background()))

	h, err := client.FetchAccountHierarchy(context.Background(), "cust1", "acct1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "cust1", h.Customer.ID)
	assert.Equal(t, "acct1", h.Account.ID)
	assert.Equal(t, "c1", h.Contract.ID)
	assert.Equal(t, 42.5, h.Account.Balance)
}

func TestRateSpecificFetches(t *testing.T) {
	_, client := newFakePortal(t)
	require.NoError(t, client.Login(context.Background()))
	ctx := context.Background()

	periods, err := client.FetchPeriods(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.True(t, periods[0].Current)

	credits, err := client.FetchWinterCredits(ctx, "c1", 90*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 12.3, credits.CumulatedCredit)
	assert.Equal(t, 90*time.Minute, credits.PreheatDuration)
	assert.Equal(t, testNow, credits.RefreshedAt)

	peaks, err := client.RefreshPeakData(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, peaks, 1)
	assert.Equal(t, "TPC-DPC", peaks[0].Offer)
}

func TestFetchHourlyConsumption(t *testing.T) {
	_, client := newFakePortal(t)
	require.NoError(t, client.Login(context.Background()))

	from := testNow.Add(-2 * time.Hour)
	records, err := client.FetchHourlyConsumption(context.Background(), "c1", from, testNow)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].HourStart.Equal(from))
	assert.Equal(t, 2.0, records[1].KWh)
}

func TestNotFoundIsTransport(t *testing.T) {
	_, client := newFakePortal(t)
	require.NoError(t, client.Login(context.Background()))

	_, err := client.FetchOutages(context.Background(), "c1")
	require.Error(t, err)

	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestUnauthorizedDropsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Now: func() time.Time { return testNow }})
	client.token = tokenFor(signedToken(t, testNow.Add(time.Hour)))
	client.expiresAt = testNow.Add(time.Hour)
	require.False(t, client.IsSessionExpired())

	_, err := client.FetchPeriods(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, client.IsSessionExpired())
}

func TestClose(t *testing.T) {
	_, client := newFakePortal(t)
	require.NoError(t, client.Login(context.Background()))
	require.NoError(t, client.Close())
	assert.True(t, client.IsSessionExpired())
}

func tokenFor(access string) *oauth2.Token {
	return &oauth2.Token{AccessToken: access, TokenType: "bearer"}
}
