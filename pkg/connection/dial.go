package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/transport"
)

// Dial errors.
var (
	ErrSecurityInit = errors.New("security adapter initialization failed")
	ErrHandshake    = errors.New("secure handshake failed")
)

// DefaultPollInterval is how often a running handshake is polled.
const DefaultPollInterval = 20 * time.Millisecond

// Session is a connected socket with its security adapter.
type Session struct {
	Conn    net.Conn
	Adapter transport.SecurityAdapter
}

// Send writes one datagram through the adapter.
func (s *Session) Send(data []byte) error {
	if n := s.Adapter.SendMessage(data); n < 0 {
		return fmt.Errorf("send: %s", transport.StatusText(n))
	}
	return nil
}

// Close resets the adapter and closes the socket.
func (s *Session) Close() error {
	s.Adapter.Reset()
	return s.Conn.Close()
}

// Dialer opens a datagram socket to the server and runs the security
// handshake on it. The adapter only reports status; Dialer owns the polling.
type Dialer struct {
	// Address is the server host:port.
	Address string

	// Security selects the mode and credentials.
	Security *transport.Security

	// NewAdapter returns a fresh adapter per attempt. Defaults to
	// DefaultAdapter.
	NewAdapter func(sec *transport.Security) transport.SecurityAdapter

	// DialContext opens the socket. Defaults to a UDP net.Dialer.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)

	// PollInterval between ContinueConnecting calls.
	PollInterval time.Duration

	// Logger receives attempt details. Nil disables logging.
	Logger *slog.Logger
}

// DefaultAdapter picks the adapter for the security mode.
func DefaultAdapter(sec *transport.Security) transport.SecurityAdapter {
	if sec != nil && sec.Mode == transport.ModeNoSec {
		return &transport.PlainAdapter{}
	}
	return transport.NewDTLSAdapter(transport.DTLSOptions{})
}

// Dial connects and completes the handshake, or fails when ctx ends.
func (d *Dialer) Dial(ctx context.Context) (*Session, error) {
	dial := d.DialContext
	if dial == nil {
		var nd net.Dialer
		dial = nd.DialContext
	}
	newAdapter := d.NewAdapter
	if newAdapter == nil {
		newAdapter = DefaultAdapter
	}
	poll := d.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	conn, err := dial(ctx, "udp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Address, err)
	}

	adapter := newAdapter(d.Security)
	if st := adapter.Init(d.Security); st != transport.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrSecurityInit, adapterError(adapter, st))
	}

	st := adapter.StartConnectingNonBlocking(conn)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for st == transport.StatusWantRead || st == transport.StatusWantWrite {
		select {
		case <-ctx.Done():
			adapter.Reset()
			_ = conn.Close()
			return nil, ctx.Err()
		case <-ticker.C:
			st = adapter.ContinueConnecting()
		}
	}
	if st < 0 {
		adapter.Reset()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrHandshake, adapterError(adapter, st))
	}

	if d.Logger != nil {
		d.Logger.Debug("secure session established", "server", d.Address, "remote", conn.RemoteAddr())
	}
	return &Session{Conn: conn, Adapter: adapter}, nil
}

func adapterError(a transport.SecurityAdapter, st int) string {
	if e, ok := a.(interface{ Err() error }); ok && e.Err() != nil {
		return fmt.Sprintf("%s: %v", transport.StatusText(st), e.Err())
	}
	return transport.StatusText(st)
}
