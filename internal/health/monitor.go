// Package health polls registered agents' /health endpoints and reports
// status changes as typed events on a channel.
//
// The monitor deliberately does not invoke callbacks: consumers read
// Events() in an explicit handler loop, so recovery logic has no hidden
// control flow through stored closures. The monitor observes and reports
// only; it never restarts or deregisters an agent itself.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status values tracked per agent.
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Agent is a peer to poll.
type Agent struct {
	ID       string
	Endpoint string
}

// Event is emitted when an agent crosses a health boundary.
type Event struct {
	AgentID  string
	Status   string // StatusHealthy (recovered) or StatusUnhealthy
	Failures int    // consecutive failures at the time of the event
}

// AgentHealth is the tracked state for one agent.
type AgentHealth struct {
	AgentID          string
	Status           string
	LastCheck        time.Time
	LastHealthy      time.Time
	ConsecutiveFails int
}

// Monitor performs periodic health checks on all agents returned by a
// provider function. An agent is marked unhealthy after maxFailures
// consecutive failed checks; the transition (and any later recovery) is
// published on the event channel. All methods are safe for concurrent use.
type Monitor struct {
	agents      map[string]*AgentHealth
	checkFunc   func(endpoint string) error
	events      chan Event
	interval    time.Duration
	maxFailures int
	httpClient  *http.Client
	mu          sync.RWMutex
	wg          sync.WaitGroup
	cancel      context.CancelFunc
	ctx         context.Context
}

// NewMonitor creates a monitor that checks each agent every interval and
// marks it unhealthy after 3 consecutive failures. Events are buffered so a
// slow consumer does not stall the polling loop.
func NewMonitor(interval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		agents:      make(map[string]*AgentHealth),
		events:      make(chan Event, 16),
		interval:    interval,
		maxFailures: 3,
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		ctx:         ctx,
		cancel:      cancel,
	}
	m.checkFunc = m.defaultCheck
	return m
}

// Events returns the channel on which status-change events are published.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Start runs the polling loop until ctx (or Stop) cancels it. provider is
// called before every sweep so newly registered agents join monitoring and
// removed agents leave it.
func (m *Monitor) Start(ctx context.Context, provider func() []Agent) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{"interval": m.interval}).Info("Health monitor started")

	m.checkAll(provider())
	for {
		select {
		case <-ticker.C:
			m.checkAll(provider())
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		}
	}
}

// Stop cancels the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// AgentHealthFor returns a copy of one agent's tracked health, or nil if the
// agent is not monitored.
func (m *Monitor) AgentHealthFor(agentID string) *AgentHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.agents[agentID]
	if !ok {
		return nil
	}
	cp := *h
	return &cp
}

// IsHealthy reports whether the agent's last known status is healthy.
func (m *Monitor) IsHealthy(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.agents[agentID]
	return ok && h.Status == StatusHealthy
}

// SetCheckFunc overrides the HTTP health probe, for tests.
func (m *Monitor) SetCheckFunc(f func(endpoint string) error) {
	m.checkFunc = f
}

func (m *Monitor) checkAll(agents []Agent) {
	current := make(map[string]bool, len(agents))
	for _, a := range agents {
		current[a.ID] = true
		m.checkAgent(a)
	}

	// Drop agents no longer registered.
	m.mu.Lock()
	for id := range m.agents {
		if !current[id] {
			delete(m.agents, id)
			log.WithFields(log.Fields{"agent_id": id}).Info("Agent removed from health monitoring")
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) checkAgent(a Agent) {
	m.mu.Lock()
	h, ok := m.agents[a.ID]
	if !ok {
		h = &AgentHealth{
			AgentID:     a.ID,
			Status:      StatusUnknown,
			LastHealthy: time.Now(),
		}
		m.agents[a.ID] = h
	}
	m.mu.Unlock()

	err := m.checkFunc(a.Endpoint)

	m.mu.Lock()
	defer m.mu.Unlock()
	h.LastCheck = time.Now()

	if err != nil {
		h.ConsecutiveFails++
		log.WithFields(log.Fields{
			"agent_id": a.ID,
			"failures": h.ConsecutiveFails,
			"error":    err.Error(),
		}).Warn("Health check failed")

		if h.ConsecutiveFails >= m.maxFailures && h.Status != StatusUnhealthy {
			h.Status = StatusUnhealthy
			m.publish(Event{AgentID: a.ID, Status: StatusUnhealthy, Failures: h.ConsecutiveFails})
		}
		return
	}

	if h.Status == StatusUnhealthy {
		log.WithFields(log.Fields{"agent_id": a.ID}).Info("Agent recovered")
		m.publish(Event{AgentID: a.ID, Status: StatusHealthy})
	}
	h.Status = StatusHealthy
	h.ConsecutiveFails = 0
	h.LastHealthy = time.Now()
}

// publish must be called with mu held; it never blocks the polling loop.
func (m *Monitor) publish(ev Event) {
	select {
	case m.events <- ev:
	default:
		log.WithFields(log.Fields{"agent_id": ev.AgentID}).Warn("Health event dropped, consumer too slow")
	}
}

func (m *Monitor) defaultCheck(endpoint string) error {
	url := endpoint
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	if !strings.HasSuffix(url, "/health") {
		url = strings.TrimRight(url, "/") + "/health"
	}

	resp, err := m.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
