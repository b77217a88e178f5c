// Package realtime owns the push-transport state machine for instances that
// expose a WebSocket feed. A Manager drives exactly one instance: it opens
// the transport, coalesces bursts of push events into debounced re-fetches,
// suppresses unchanged snapshots, and reports lifecycle through a Listener.
//
// The manager deliberately performs no reconnection. Backoff and give-up
// policy live in the orchestrator that observes OnDisconnect/OnError across
// all instances uniformly.
package realtime

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"
)

// State is the per-instance connection state. Transitions are driven only
// by transport events and explicit Connect/Disconnect calls.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Source is implemented by adapters that expose a push transport.
type Source interface {
	// Dial opens the push transport.
	Dial(ctx context.Context) (Conn, error)
	// Fetch retrieves the current snapshot, used for the cold-start fetch,
	// debounced re-fetches and the fallback refresh.
	Fetch(ctx context.Context) (any, error)
	// StateChanged reports whether an inbound push message is one of the
	// recognized state-change types that warrant a re-fetch.
	StateChanged(message []byte) bool
	// RefreshInterval is the fallback poll interval while connected,
	// covering push events the transport missed.
	RefreshInterval() time.Duration
}

// Listener receives lifecycle and data events for one instance. The
// orchestrator registers exactly one listener per manager; fan-out to
// further subscribers happens outside this package.
type Listener interface {
	OnConnect(instanceID string)
	OnUpdate(instanceID string, data any)
	OnDisconnect(instanceID string, reason error)
	OnError(instanceID string, err error)
}

const (
	defaultDebounceWindow = 200 * time.Millisecond
	fetchTimeout          = 15 * time.Second
)

// Manager drives the push connection for a single instance.
type Manager struct {
	instanceID string
	source     Source
	listener   Listener
	logger     zerolog.Logger
	window     time.Duration

	mu           sync.Mutex
	state        State
	conn         Conn
	stop         chan struct{}
	debounced    func(func())
	lastSnapshot any
	hasSnapshot  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDebounceWindow overrides the debounce window for re-fetches.
func WithDebounceWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

// NewManager creates a manager in the Idle state.
func NewManager(instanceID string, source Source, listener Listener, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		instanceID: instanceID,
		source:     source,
		listener:   listener,
		logger:     logger.With().Str("instance", instanceID).Logger(),
		window:     defaultDebounceWindow,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.debounced = debounce.New(m.window)
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the transport. It is idempotent: a call while Connecting or
// Connected is a no-op, and a call after a disconnect first makes sure the
// previous transport is fully torn down.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateConnected:
		m.mu.Unlock()
		return
	case StateDisconnected:
		m.teardownLocked()
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.source.Dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.logger.Debug().Err(err).Msg("transport dial failed")
		m.listener.OnError(m.instanceID, err)
		m.listener.OnDisconnect(m.instanceID, err)
		return
	}

	m.mu.Lock()
	if m.state != StateConnecting {
		// Disconnected while dialing; discard the fresh transport.
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.state = StateConnected
	m.conn = conn
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.logger.Debug().Msg("transport connected")
	m.listener.OnConnect(m.instanceID)
	m.fetchAndBroadcast()

	go m.readLoop(conn)
	go m.refreshLoop(stop)
}

// Disconnect tears down the connection. It is idempotent; the listener's
// OnDisconnect fires exactly once per call that actually tore something
// down. All pending timers are cancelled before the transport closes so no
// stale timer fires against a closed connection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	previous := m.state
	if previous != StateConnecting && previous != StateConnected {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.teardownLocked()
	m.mu.Unlock()

	m.logger.Debug().Msg("disconnected")
	m.listener.OnDisconnect(m.instanceID, nil)
}

// teardownLocked cancels timers and closes the transport. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	// A trailing no-op cancels any pending debounced fetch.
	m.debounced(func() {})
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

// readLoop consumes push messages until the transport closes or errors.
func (m *Manager) readLoop(conn Conn) {
	for {
		message, err := conn.ReadMessage()
		if err != nil {
			m.transportClosed(conn, err)
			return
		}
		if m.source.StateChanged(message) {
			m.debounced(m.scheduledFetch)
		}
	}
}

// refreshLoop issues the periodic fallback refresh that covers push events
// the transport dropped.
func (m *Manager) refreshLoop(stop chan struct{}) {
	interval := m.source.RefreshInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.fetchAndBroadcast()
		}
	}
}

// scheduledFetch runs from the debounce timer; it must not touch a closed
// connection's state, so it re-checks liveness first.
func (m *Manager) scheduledFetch() {
	if m.State() != StateConnected {
		return
	}
	m.fetchAndBroadcast()
}

// fetchAndBroadcast pulls a fresh snapshot and forwards it unless it is
// structurally identical to the last one broadcast.
func (m *Manager) fetchAndBroadcast() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	data, err := m.source.Fetch(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("snapshot fetch failed")
		m.listener.OnError(m.instanceID, err)
		return
	}

	m.mu.Lock()
	if m.hasSnapshot && reflect.DeepEqual(m.lastSnapshot, data) {
		m.mu.Unlock()
		return
	}
	m.lastSnapshot = data
	m.hasSnapshot = true
	m.mu.Unlock()

	m.listener.OnUpdate(m.instanceID, data)
}

// transportClosed handles an unsolicited close or error from the transport.
// Reconnection is the orchestrator's decision, not ours.
func (m *Manager) transportClosed(conn Conn, err error) {
	m.mu.Lock()
	if m.state != StateConnected {
		// An explicit Disconnect already ran teardown and notified.
		m.mu.Unlock()
		return
	}
	if m.conn != conn {
		// Late error from a transport that was already replaced.
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.teardownLocked()
	m.mu.Unlock()

	m.logger.Debug().Err(err).Msg("transport closed")
	m.listener.OnError(m.instanceID, err)
	m.listener.OnDisconnect(m.instanceID, err)
}
