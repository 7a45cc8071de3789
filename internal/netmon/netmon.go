// Package netmon watches server reachability and reports online/offline
// transitions. The sync engine treats an online transition as a drain
// trigger and an offline one as a full drain suspension.
package netmon

import (
	"log/slog"
	"sync"
	"time"
)

// Prober checks whether the server is reachable. Satisfied by the remote
// client's HealthCheck.
type Prober interface {
	HealthCheck() error
}

// Event is an online/offline transition.
type Event struct {
	Online bool
	At     time.Time
}

// Monitor polls the prober on an interval and emits transitions. State
// starts unknown; the first probe always emits an event.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu     sync.Mutex
	known  bool
	online bool

	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// New creates a monitor. interval bounds how stale the reported state can be.
func New(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		events:   make(chan Event, 8),
		stop:     make(chan struct{}),
	}
}

// Events returns the transition channel. Events are dropped, not blocked on,
// when the consumer lags; consumers needing current state call Online.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Online returns the last probed state. False until the first probe runs.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known && m.online
}

// Probe runs a single reachability check, updates state, and emits a
// transition event if the state changed. Returns the probed state.
func (m *Monitor) Probe() bool {
	err := m.prober.HealthCheck()
	online := err == nil

	m.mu.Lock()
	changed := !m.known || m.online != online
	m.known = true
	m.online = online
	m.mu.Unlock()

	if changed {
		slog.Debug("connectivity transition", "online", online, "err", err)
		select {
		case m.events <- Event{Online: online, At: time.Now()}:
		default:
			// Consumer lagging; state is still queryable via Online.
		}
	}
	return online
}

// Start launches the polling loop. Stop terminates it.
func (m *Monitor) Start() {
	go func() {
		m.Probe()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Probe()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop terminates the polling loop. Safe to call more than once.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
}
