package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitor(t *testing.T) {
	m := NewMonitor(5 * time.Second)
	defer m.Stop()

	assert.NotNil(t, m)
	assert.Equal(t, 5*time.Second, m.interval)
	assert.Equal(t, 3, m.maxFailures)
	assert.NotNil(t, m.Events())
	assert.Len(t, m.agents, 0)
}

// failingCheck fails for the given agent endpoints and passes everything else.
type failingCheck struct {
	mu      sync.Mutex
	failing map[string]bool
}

func (f *failingCheck) check(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[endpoint] {
		return errors.New("connection refused")
	}
	return nil
}

func (f *failingCheck) setFailing(endpoint string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[endpoint] = fail
}

func waitForEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for health event")
		return Event{}
	}
}

// TestUnhealthyAfterConsecutiveFailures verifies the three-strike rule: one
// unhealthy event exactly when the third consecutive check fails, and one
// recovery event when the agent passes again.
func TestUnhealthyAfterConsecutiveFailures(t *testing.T) {
	m := NewMonitor(20 * time.Millisecond)
	defer m.Stop()

	checks := &failingCheck{failing: map[string]bool{"http://p1": true}}
	m.SetCheckFunc(checks.check)

	agents := []Agent{
		{ID: "P01", Endpoint: "http://p1"},
		{ID: "P02", Endpoint: "http://p2"},
	}
	go m.Start(context.Background(), func() []Agent { return agents })

	ev := waitForEvent(t, m.Events())
	assert.Equal(t, "P01", ev.AgentID)
	assert.Equal(t, StatusUnhealthy, ev.Status)
	assert.GreaterOrEqual(t, ev.Failures, 3)

	assert.False(t, m.IsHealthy("P01"))
	assert.True(t, m.IsHealthy("P02"))

	// No second event while the agent stays down.
	select {
	case extra := <-m.Events():
		t.Fatalf("Unexpected extra event %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}

	checks.setFailing("http://p1", false)
	recovered := waitForEvent(t, m.Events())
	assert.Equal(t, "P01", recovered.AgentID)
	assert.Equal(t, StatusHealthy, recovered.Status)
	assert.True(t, m.IsHealthy("P01"))
}

func TestAgentHealthTracking(t *testing.T) {
	m := NewMonitor(20 * time.Millisecond)
	defer m.Stop()

	m.SetCheckFunc(func(string) error { return nil })
	go m.Start(context.Background(), func() []Agent {
		return []Agent{{ID: "REF01", Endpoint: "http://r1"}}
	})

	require.Eventually(t, func() bool {
		return m.IsHealthy("REF01")
	}, 2*time.Second, 10*time.Millisecond)

	h := m.AgentHealthFor("REF01")
	require.NotNil(t, h)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, 0, h.ConsecutiveFails)
	assert.False(t, h.LastCheck.IsZero())

	assert.Nil(t, m.AgentHealthFor("ghost"))
}

// TestRemovedAgentDropped: an agent that leaves the provider's list leaves
// monitoring on the next sweep.
func TestRemovedAgentDropped(t *testing.T) {
	m := NewMonitor(20 * time.Millisecond)
	defer m.Stop()

	m.SetCheckFunc(func(string) error { return nil })

	var mu sync.Mutex
	agents := []Agent{{ID: "P01", Endpoint: "http://p1"}}
	go m.Start(context.Background(), func() []Agent {
		mu.Lock()
		defer mu.Unlock()
		return agents
	})

	require.Eventually(t, func() bool {
		return m.IsHealthy("P01")
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	agents = nil
	mu.Unlock()

	require.Eventually(t, func() bool {
		return m.AgentHealthFor("P01") == nil
	}, 2*time.Second, 10*time.Millisecond)
}

// TestDefaultCheck exercises the real HTTP probe against a test server.
func TestDefaultCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer healthy.Close()

	m := NewMonitor(time.Second)
	defer m.Stop()

	assert.NoError(t, m.defaultCheck(healthy.URL))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	assert.Error(t, m.defaultCheck(broken.URL))

	assert.Error(t, m.defaultCheck("http://127.0.0.1:1"))
}
