package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongTimeout is the default timeout waiting for a pong response.
	DefaultPongTimeout = 5 * time.Second

	// DefaultMaxMissedPongs is the default number of missed pongs before disconnect.
	DefaultMaxMissedPongs = 3

	// MaxDetectionDelay is the maximum time to detect connection loss.
	// Calculated as: PingInterval * MaxMissedPongs + PongTimeout
	// Default: 30 * 3 + 5 = 95 seconds
	MaxDetectionDelay = 95 * time.Second
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings.
	PingInterval time.Duration

	// PongTimeout is the timeout waiting for a pong response.
	PongTimeout time.Duration

	// MaxMissedPongs is the number of missed pongs before disconnect.
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay calculates the maximum detection delay for this configuration.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// KeepAlive monitors server liveness with CoAP ping. A ping is an empty
// confirmable message; the server answers with a reset carrying the same
// message id.
type KeepAlive struct {
	config KeepAliveConfig

	// sendPing sends one ping and returns the message id it used.
	sendPing       func() (uint16, error)
	onTimeout      func()
	onPongReceived func(mid uint16, latency time.Duration)

	pings        atomic.Uint32
	missedPongs  int
	lastPingTime time.Time
	lastPongTime time.Time
	pendingPing  uint16
	hasPending   bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	pongCh  chan uint16
}

// NewKeepAlive creates a new keep-alive manager.
func NewKeepAlive(config KeepAliveConfig, sendPing func() (uint16, error), onTimeout func()) *KeepAlive {
	if config.PingInterval == 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.PongTimeout == 0 {
		config.PongTimeout = DefaultPongTimeout
	}
	if config.MaxMissedPongs == 0 {
		config.MaxMissedPongs = DefaultMaxMissedPongs
	}

	return &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
		pongCh:    make(chan uint16, 1),
	}
}

// SetPongReceivedCallback sets a callback for when pongs are received.
func (ka *KeepAlive) SetPongReceivedCallback(cb func(mid uint16, latency time.Duration)) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.onPongReceived = cb
}

// Start begins the keep-alive monitoring loop.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.missedPongs = 0
	ka.hasPending = false
	ka.stopCh = make(chan struct{})
	ka.mu.Unlock()

	go ka.loop(ctx)
}

// Stop stops the keep-alive monitoring.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if !ka.running {
		return
	}

	ka.running = false
	close(ka.stopCh)
}

// PongReceived should be called when a reset answering a ping arrives.
func (ka *KeepAlive) PongReceived(mid uint16) {
	select {
	case ka.pongCh <- mid:
	default:
	}
}

// Activity records traffic from the server. Any datagram proves the peer
// is alive, so the missed counter is cleared.
func (ka *KeepAlive) Activity() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.lastPongTime = time.Now()
	ka.missedPongs = 0
}

// IsRunning returns true if keep-alive monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastPingTime: ka.lastPingTime,
		LastPongTime: ka.lastPongTime,
		MissedPongs:  ka.missedPongs,
		PendingID:    ka.pendingPing,
		PingsSent:    ka.pings.Load(),
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastPingTime time.Time
	LastPongTime time.Time
	MissedPongs  int
	PendingID    uint16
	PingsSent    uint32
}

// loop is the main keep-alive monitoring loop.
func (ka *KeepAlive) loop(ctx context.Context) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	// Send initial ping
	ka.sendPingMessage()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ka.stopCh:
			return
		case <-ticker.C:
			if !ka.handleTick() {
				ka.mu.Lock()
				ka.running = false
				ka.mu.Unlock()
				return
			}
		case mid := <-ka.pongCh:
			ka.handlePong(mid)
		}
	}
}

// sendPingMessage sends a ping and records the time.
func (ka *KeepAlive) sendPingMessage() {
	ka.pings.Add(1)
	now := time.Now()

	mid, err := ka.sendPing()

	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.lastPingTime = now
	if err != nil {
		// Count it as missed on the next tick.
		ka.missedPongs++
		ka.hasPending = false
		return
	}
	ka.pendingPing = mid
	ka.hasPending = true
}

// handleTick handles the ping interval tick. It returns false once the
// server is considered dead.
func (ka *KeepAlive) handleTick() bool {
	ka.mu.Lock()

	if ka.hasPending && time.Since(ka.lastPingTime) >= ka.config.PongTimeout {
		ka.missedPongs++
		ka.hasPending = false
	}
	dead := ka.missedPongs >= ka.config.MaxMissedPongs
	ka.mu.Unlock()

	if dead {
		if ka.onTimeout != nil {
			ka.onTimeout()
		}
		return false
	}

	ka.sendPingMessage()
	return true
}

// handlePong handles a received pong.
func (ka *KeepAlive) handlePong(mid uint16) {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	now := time.Now()
	ka.lastPongTime = now

	// Late resets for earlier pings are ignored.
	if ka.hasPending && mid == ka.pendingPing {
		latency := now.Sub(ka.lastPingTime)
		ka.hasPending = false
		ka.missedPongs = 0

		if ka.onPongReceived != nil {
			go ka.onPongReceived(mid, latency)
		}
	}
}

// CalculateDetectionDelay calculates the maximum detection delay for given parameters.
func CalculateDetectionDelay(pingInterval, pongTimeout time.Duration, maxMissedPongs int) time.Duration {
	return pingInterval*time.Duration(maxMissedPongs) + pongTimeout
}
