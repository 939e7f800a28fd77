// Package connectivity tells the terminal whether the shared stores are
// likely reachable. The signal is passed explicitly to its consumers.
package connectivity

import (
	"fmt"
	"sync"
	"time"
)

// Status is the terminal's view of the shared stores.
type Status string

const (
	StatusOnline Status = "online"
	// StatusDegraded means recent calls failed but the terminal has not given
	// up on the store; failures in this state are ambiguous.
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// All lists every status, used for gauges.
var All = []Status{StatusOnline, StatusDegraded, StatusOffline}

func (s Status) String() string { return string(s) }

// Reachable reports whether live calls should be attempted.
func (s Status) Reachable() bool { return s != StatusOffline }

// ParseStatus parses a status name.
func ParseStatus(v string) (Status, error) {
	switch s := Status(v); s {
	case StatusOnline, StatusDegraded, StatusOffline:
		return s, nil
	}
	return "", fmt.Errorf("unknown connectivity status %q", v)
}

// Event is a status transition.
type Event struct {
	From Status
	To   Status
	At   time.Time
}

// Signal is read synchronously when a bind is attempted and observed for
// transitions by the reconciler.
type Signal interface {
	Status() Status
	// Subscribe returns transition events until cancel is called.
	Subscribe() (<-chan Event, func())
}

// Controllable is a signal an operator can force.
type Controllable interface {
	Signal
	// Force pins the status until Release.
	Force(Status)
	Release()
}

const subscriberBuffer = 16

// hub fans transitions out to subscribers. A slow subscriber loses its
// oldest events, never the newest.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	key := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, key)
			close(ch)
		})
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Manual is a signal set by hand: tests and terminals without a probe.
type Manual struct {
	hub
	mu     sync.RWMutex
	status Status
	clock  func() time.Time
}

func NewManual(initial Status) *Manual {
	return &Manual{status: initial, clock: time.Now}
}

func (m *Manual) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manual) Subscribe() (<-chan Event, func()) {
	return m.subscribe()
}

// Set changes the status and notifies subscribers if it changed. Events are
// published under the lock so subscribers see transitions in order.
func (m *Manual) Set(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.status
	m.status = s
	if prev != s {
		m.publish(Event{From: prev, To: s, At: m.clock()})
	}
}

func (m *Manual) Force(s Status) { m.Set(s) }

// Release returns a manual signal to online.
func (m *Manual) Release() { m.Set(StatusOnline) }
