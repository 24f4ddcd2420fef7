package relay

import (
	"sync"
	"time"
)

// HeartbeatState is the liveness state of one viewer connection.
type HeartbeatState int

const (
	HeartbeatConnected    HeartbeatState = iota // Normal operation
	HeartbeatAwaitingPong                       // Ping sent, no inbound frame since
	HeartbeatTimedOut                           // Terminal; connection must be closed
)

// Heartbeat tracks per-viewer liveness: the server pings every interval and
// expects some inbound frame within timeout of the last ping. Pong frames
// (or any inbound activity) reset the state to connected.
type Heartbeat struct {
	timeout time.Duration

	mu       sync.Mutex
	state    HeartbeatState
	lastPing time.Time
	now      func() time.Time
}

// NewHeartbeat creates a heartbeat in the connected state.
func NewHeartbeat(timeout time.Duration) *Heartbeat {
	hb := &Heartbeat{
		timeout: timeout,
		state:   HeartbeatConnected,
		now:     time.Now,
	}
	hb.lastPing = hb.now()
	return hb
}

// MarkPingSent records an outbound ping.
func (h *Heartbeat) MarkPingSent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == HeartbeatTimedOut {
		return
	}
	h.lastPing = h.now()
	h.state = HeartbeatAwaitingPong
}

// MarkActivity records an inbound frame of any kind.
func (h *Heartbeat) MarkActivity() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == HeartbeatTimedOut {
		return
	}
	h.lastPing = h.now()
	h.state = HeartbeatConnected
}

// CheckExpired evaluates staleness: a connection awaiting a pong for longer
// than the timeout transitions to timed out. Returns true once timed out.
func (h *Heartbeat) CheckExpired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == HeartbeatTimedOut {
		return true
	}
	if h.state == HeartbeatAwaitingPong && h.now().Sub(h.lastPing) > h.timeout {
		h.state = HeartbeatTimedOut
		return true
	}
	return false
}

// State returns the current liveness state.
func (h *Heartbeat) State() HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
