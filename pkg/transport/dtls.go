package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v2"
	dtlsnet "github.com/pion/dtls/v2/pkg/net"
)

// DefaultHandshakeTimeout bounds one DTLS handshake.
const DefaultHandshakeTimeout = 30 * time.Second

// DTLSOptions configures a DTLSAdapter.
type DTLSOptions struct {
	// HandshakeTimeout bounds the handshake. Defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// ReadTimeout makes Read return StatusWantRead when no datagram arrives
	// in time. Zero blocks until a datagram or an error.
	ReadTimeout time.Duration

	// Logger receives handshake progress. Nil disables logging.
	Logger *slog.Logger
}

type adapterState uint8

const (
	stateIdle adapterState = iota
	stateInitialized
	stateConnecting
	stateConnected
	stateFailed
)

type handshakeResult struct {
	conn *dtls.Conn
	err  error
}

// DTLSAdapter implements SecurityAdapter with pion/dtls. The handshake runs
// on its own goroutine and is polled by ContinueConnecting.
type DTLSAdapter struct {
	opts DTLSOptions

	mu     sync.Mutex
	state  adapterState
	config *dtls.Config
	raw    net.Conn
	conn   *dtls.Conn
	cancel context.CancelFunc
	done   chan handshakeResult
	err    error
}

// NewDTLSAdapter creates an uninitialized adapter.
func NewDTLSAdapter(opts DTLSOptions) *DTLSAdapter {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &DTLSAdapter{opts: opts}
}

// Init implements SecurityAdapter.
func (a *DTLSAdapter) Init(sec *Security) int {
	cfg, err := newDTLSConfig(sec)
	if err != nil {
		a.setErr(err)
		return StatusError
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	a.state = stateInitialized
	a.err = nil
	return StatusOK
}

// StartConnectingNonBlocking implements SecurityAdapter.
func (a *DTLSAdapter) StartConnectingNonBlocking(conn net.Conn) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateIdle:
		return StatusNotInitialized
	case stateConnecting:
		return StatusWantRead
	case stateConnected:
		return StatusOK
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.HandshakeTimeout)
	a.raw = conn
	a.cancel = cancel
	a.done = make(chan handshakeResult, 1)
	a.state = stateConnecting
	a.err = nil

	cfg := a.config
	done := a.done
	go func() {
		c, err := dtls.ClientWithContext(ctx, dtlsnet.PacketConnFromConn(conn), conn.RemoteAddr(), cfg)
		done <- handshakeResult{conn: c, err: err}
	}()

	a.debug("handshake started", "remote", conn.RemoteAddr())
	return StatusWantRead
}

// ContinueConnecting implements SecurityAdapter.
func (a *DTLSAdapter) ContinueConnecting() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateIdle:
		return StatusNotInitialized
	case stateInitialized:
		return StatusError
	case stateConnected:
		return StatusOK
	case stateFailed:
		return StatusError
	}

	select {
	case res := <-a.done:
		a.cancel()
		if res.err != nil {
			a.state = stateFailed
			a.err = res.err
			a.debug("handshake failed", "error", res.err)
			return StatusError
		}
		a.conn = res.conn
		a.state = stateConnected
		a.debug("handshake complete", "remote", a.raw.RemoteAddr())
		return StatusOK
	default:
		return StatusWantRead
	}
}

// SendMessage implements SecurityAdapter.
func (a *DTLSAdapter) SendMessage(data []byte) int {
	conn, st := a.connected()
	if st != StatusOK {
		return st
	}
	n, err := conn.Write(data)
	if err != nil {
		a.setErr(err)
		return statusForError(err)
	}
	return n
}

// Read implements SecurityAdapter.
func (a *DTLSAdapter) Read(buf []byte) int {
	conn, st := a.connected()
	if st != StatusOK {
		return st
	}
	if a.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(a.opts.ReadTimeout))
	}
	n, err := conn.Read(buf)
	if err != nil {
		if st := statusForError(err); st != StatusWantRead {
			a.setErr(err)
			return st
		}
		return StatusWantRead
	}
	return n
}

// Reset implements SecurityAdapter.
func (a *DTLSAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.state == stateConnecting && a.done != nil {
		go closeAbandoned(a.done)
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
	a.raw = nil
	a.done = nil
	if a.state != stateIdle {
		a.state = stateInitialized
	}
}

// closeAbandoned waits for a cancelled handshake and closes the connection
// it may still have produced.
func closeAbandoned(done <-chan handshakeResult) {
	if res := <-done; res.conn != nil {
		_ = res.conn.Close()
	}
}

// Err returns the last handshake or I/O error.
func (a *DTLSAdapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *DTLSAdapter) connected() (*dtls.Conn, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateConnected:
		return a.conn, StatusOK
	case stateConnecting:
		return nil, StatusWantRead
	case stateIdle:
		return nil, StatusNotInitialized
	default:
		return nil, StatusError
	}
}

func (a *DTLSAdapter) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *DTLSAdapter) debug(msg string, args ...any) {
	if a.opts.Logger != nil {
		a.opts.Logger.Debug(msg, args...)
	}
}

// statusForError maps an I/O error to a status code.
func statusForError(err error) int {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return StatusWantRead
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return StatusClosed
	default:
		return StatusError
	}
}

var _ SecurityAdapter = (*DTLSAdapter)(nil)
