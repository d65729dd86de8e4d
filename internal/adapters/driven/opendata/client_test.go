package opendata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

const sampleRecords = `{
  "total_count": 3,
  "results": [
    {"offre": "CPC-D", "datedebut": "2025-01-21T11:00:00+00:00", "datefin": "2025-01-21T14:00:00+00:00", "plagehoraire": "am", "duree": "PT03H00MS", "secteurclient": "Residentiel"},
    {"offre": "CPC-D", "datedebut": "2025-01-20T21:00:00+00:00", "datefin": "2025-01-21T01:00:00+00:00", "plagehoraire": "pm", "duree": "PT04H00MS", "secteurclient": "Residentiel"},
    {"offre": "TPC-DPC", "datedebut": "2025-01-20T21:00:00+00:00", "datefin": "2025-01-21T01:00:00+00:00", "plagehoraire": "pm", "duree": "PT04H00MS", "secteurclient": "Residentiel"}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:         srv.URL,
		Offer:           "CPC-D",
		PreheatDuration: 2 * time.Hour,
		InitialBackoff:  time.Millisecond,
		Now:             func() time.Time { return time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC) },
	})
}

func TestFetchPeakData(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, recordsPath, r.URL.Path)
		gotQuery = r.URL.Query().Get("refine")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleRecords))
	})

	state, err := client.FetchPeakData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "offre:CPC-D", gotQuery)
	assert.Equal(t, "CPC-D", state.Offer)
	assert.Equal(t, 2*time.Hour, state.PreheatDuration)
	require.Len(t, state.Events, 2)
	assert.True(t, state.Events[0].Start.Before(state.Events[1].Start), "events should be sorted by start")
	assert.Equal(t, domain.TimeSlotEvening, state.Events[0].Slot)
	assert.Equal(t, domain.TimeSlotMorning, state.Events[1].Slot)
	assert.Equal(t, time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC), state.FetchedAt)
}

func TestFetchPeakData_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleRecords))
	})

	state, err := client.FetchPeakData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, state.EventCount())
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPeakData_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchPeakData(context.Background())
	require.Error(t, err)

	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, domain.ErrorKindTransport, domain.ClassifyError(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPeakData_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such dataset", http.StatusNotFound)
	})

	_, err := client.FetchPeakData(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPeakData_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	})

	_, err := client.FetchPeakData(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindUnclassified, domain.ClassifyError(err))
}

func TestFetchPeakData_SkipsInvertedRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_count": 1, "results": [
			{"offre": "CPC-D", "datedebut": "2025-01-21T14:00:00+00:00", "datefin": "2025-01-21T11:00:00+00:00", "plagehoraire": "AM"}
		]}`))
	})

	state, err := client.FetchPeakData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Events)
}

func TestFetchPeakData_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: url, MaxRetries: 1})
	_, err := client.FetchPeakData(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindTransport, domain.ClassifyError(err))
}

func TestClose(t *testing.T) {
	client := NewClient(Config{})
	assert.NoError(t, client.Close())
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}
