package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestWithRetry_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	base := 10 * time.Millisecond
	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, RetryBaseDelay: base})

	start := time.Now()
	data, err := c.RequestWithRetry(context.Background(), http.MethodPost, "/api/osm-buildings/ipoh", map[string]string{"method": "bbox"}, 3)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(data))
	assert.EqualValues(t, 3, calls.Load())

	// Backoff schedule: delay(1)=base, delay(2)=2*base.
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestRequestWithRetry_ExhaustionSurfacesLastError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"success":false,"error":"first failure"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"error":"second failure"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, RetryBaseDelay: time.Millisecond})

	_, err := c.RequestWithRetry(context.Background(), http.MethodGet, "/api/zones", nil, 2)

	var exhausted *RetriesExhausted
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)

	// The raised error is the error from attempt 2, not attempt 1.
	var httpErr *HTTPError
	require.ErrorAs(t, exhausted.Err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Equal(t, "second failure", httpErr.Message)
}

func TestRequestWithRetry_FirstSuccessSkipsBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, RetryBaseDelay: time.Second})

	start := time.Now()
	_, err := c.RequestWithRetry(context.Background(), http.MethodGet, "/api/zones", nil, 3)

	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestRequestWithRetry_AbortIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Minute, RetryBaseDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.RequestWithRetry(ctx, http.MethodGet, "/api/slow", nil, 3)
	assert.ErrorIs(t, err, ErrAborted)
	assert.EqualValues(t, 1, calls.Load())
}
