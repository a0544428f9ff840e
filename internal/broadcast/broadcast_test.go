package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noSleep replaces the backoff so retry tests run instantly.
func noSleep(d *Dispatcher) *[]time.Duration {
	var mu sync.Mutex
	waits := &[]time.Duration{}
	d.sleep = func(_ context.Context, dur time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		*waits = append(*waits, dur)
	}
	return waits
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBroadcastAllDelivered(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 0)
	report := d.Broadcast(context.Background(), []Recipient{
		{ID: "P01", Endpoint: srv.URL},
		{ID: "P02", Endpoint: srv.URL},
		{ID: "P03", Endpoint: srv.URL},
	}, map[string]string{"message_type": "TEST"})

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.FailedIDs)
	assert.Equal(t, int32(3), hits.Load())
}

// TestBroadcastPartialFailure pins the delivery-report example: 3 recipients,
// one endpoint unreachable for all attempts.
func TestBroadcastPartialFailure(t *testing.T) {
	srv := okServer(t)

	d := NewDispatcher(200*time.Millisecond, 1)
	noSleep(d)

	report := d.Broadcast(context.Background(), []Recipient{
		{ID: "P01", Endpoint: srv.URL},
		{ID: "X", Endpoint: "http://127.0.0.1:1"}, // nothing listens here
		{ID: "P03", Endpoint: srv.URL},
	}, map[string]string{"message_type": "TEST"})

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"X"}, report.FailedIDs)
	assert.Contains(t, report.Errors, "X")
}

func TestBroadcastNoRecipients(t *testing.T) {
	d := NewDispatcher(time.Second, 0)
	report := d.Broadcast(context.Background(), nil, "msg")
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0, report.Successful)
	assert.Equal(t, 0, report.Failed)
}

func TestSendWithRetryEventuallySucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 2)
	waits := noSleep(d)

	err := d.SendWithRetry(context.Background(), Recipient{ID: "REF01", Endpoint: srv.URL}, "msg")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	// Backoff grows linearly: 0.5s after attempt 1, 1s after attempt 2.
	require.Len(t, *waits, 2)
	assert.Equal(t, 500*time.Millisecond, (*waits)[0])
	assert.Equal(t, time.Second, (*waits)[1])
}

func TestSendWithRetryExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 2)
	noSleep(d)

	err := d.SendWithRetry(context.Background(), Recipient{ID: "REF01", Endpoint: srv.URL}, "msg")
	require.Error(t, err)
	// maxRetries=2 means 3 attempts total.
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetryMissingEndpoint(t *testing.T) {
	var calls atomic.Int32
	d := NewDispatcher(time.Second, 2)
	d.sleep = func(context.Context, time.Duration) {
		calls.Add(1)
		t.Error("Expected no retries for a missing endpoint")
	}

	err := d.SendWithRetry(context.Background(), Recipient{ID: "ghost"}, "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(0, -1)
	assert.Equal(t, DefaultTimeout, d.timeout)
	assert.Equal(t, DefaultMaxRetries, d.maxRetries)
	assert.NotNil(t, d.sleep)
}
