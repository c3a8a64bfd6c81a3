package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
)

// DefaultAttemptTimeout bounds one connect attempt made by the retry loop.
const DefaultAttemptTimeout = 60 * time.Second

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active session.
	StateDisconnected State = iota

	// StateConnecting indicates a first connect attempt is in progress.
	StateConnecting

	// StateConnected indicates an established secure session.
	StateConnected

	// StateReconnecting indicates the retry loop is waiting or attempting.
	StateReconnecting

	// StateClosed indicates the manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes a session. It returns nil on success.
type ConnectFunc func(ctx context.Context) error

// Options configures a Manager.
type Options struct {
	// Backoff customizes retry timing. The zero value uses
	// DefaultBackoffConfig.
	Backoff BackoffConfig

	// AttemptTimeout bounds each retry. Defaults to DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// DisableAutoReconnect leaves the manager disconnected after a loss.
	DisableAutoReconnect bool

	// Logger receives state transitions. Nil disables logging.
	Logger *slog.Logger
}

// Manager owns the retry policy around a ConnectFunc. Connection loss is
// reported by the caller; the manager then retries with backoff until a
// connect succeeds or it is closed.
type Manager struct {
	mu sync.RWMutex

	state         State
	backoff       *Backoff
	connectFn     ConnectFunc
	autoReconnect bool
	timeout       time.Duration
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager. A nil opts uses defaults.
func NewManager(connectFn ConnectFunc, opts *Options) *Manager {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.Backoff == (BackoffConfig{}) {
		o.Backoff = DefaultBackoffConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:         StateDisconnected,
		backoff:       NewBackoffWithConfig(o.Backoff),
		connectFn:     connectFn,
		autoReconnect: !o.DisableAutoReconnect,
		timeout:       o.AttemptTimeout,
		logger:        o.Logger,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if a session is established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect makes one connect attempt. On failure the caller decides whether
// to retry; Retry hands the decision to the background loop.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	old := m.state
	m.state = StateConnecting
	m.mu.Unlock()
	m.notifyState(old, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.transition(StateConnecting, StateDisconnected)
		return err
	}
	m.connected(StateConnecting)
	return nil
}

// Retry schedules background attempts from the disconnected state.
func (m *Manager) Retry() {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.mu.Unlock()
	m.notifyState(StateDisconnected, StateReconnecting)
	m.triggerReconnect()
}

// Disconnect drops the session on request. Auto-reconnect applies.
func (m *Manager) Disconnect() {
	m.lose("disconnect requested")
}

// NotifyConnectionLost reports a dead session, for example after a
// keep-alive timeout or a fatal read error.
func (m *Manager) NotifyConnectionLost() {
	m.lose("connection lost")
}

func (m *Manager) lose(reason string) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	next := StateDisconnected
	if m.autoReconnect {
		next = StateReconnecting
	}
	m.state = next
	onDisconnected := m.onDisconnected
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("session down", "reason", reason, "reconnect", next == StateReconnecting)
	}
	m.notifyState(StateConnected, next)
	if onDisconnected != nil {
		onDisconnected()
	}
	if next == StateReconnecting {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background retry loop. Call it once.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close stops the retry loop and waits for it.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.notifyState(old, StateClosed)
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect retries with backoff until connected, closed, or
// reconnection is no longer wanted.
func (m *Manager) attemptReconnect() {
	for {
		if m.State() != StateReconnecting {
			return
		}

		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()

		m.mu.RLock()
		onReconnecting := m.onReconnecting
		m.mu.RUnlock()
		if onReconnecting != nil {
			onReconnecting(attempt, delay)
		}
		if m.logger != nil {
			m.logger.Debug("reconnect scheduled", "attempt", attempt, "delay", delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		if m.State() != StateReconnecting {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			m.connected(StateReconnecting)
			return
		}
		if m.logger != nil {
			m.logger.Debug("reconnect failed", "attempt", attempt, "error", err)
		}
	}
}

// connected moves from -> StateConnected unless the state changed meanwhile.
func (m *Manager) connected(from State) {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return
	}
	m.state = StateConnected
	m.backoff.Reset()
	onConnected := m.onConnected
	m.mu.Unlock()

	m.notifyState(from, StateConnected)
	if onConnected != nil {
		onConnected()
	}
}

func (m *Manager) transition(from, to State) {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()
	m.notifyState(from, to)
}

func (m *Manager) notifyState(from, to State) {
	m.mu.RLock()
	fn := m.onStateChange
	m.mu.RUnlock()
	if fn != nil {
		fn(from, to)
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for successful connection.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for disconnection.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback for each scheduled retry.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// BackoffAttempts returns the number of retries since the last success.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}
