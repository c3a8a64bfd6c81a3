package transport

import (
	"net"
	"sync"
	"time"
)

// PlainAdapter implements SecurityAdapter for ModeNoSec. It passes datagrams
// through unchanged.
type PlainAdapter struct {
	// ReadTimeout makes Read return StatusWantRead when no datagram arrives
	// in time. Zero blocks.
	ReadTimeout time.Duration

	mu          sync.Mutex
	initialized bool
	conn        net.Conn
}

// Init implements SecurityAdapter. Only ModeNoSec is accepted.
func (p *PlainAdapter) Init(sec *Security) int {
	if sec == nil || sec.Mode != ModeNoSec {
		return StatusError
	}
	p.mu.Lock()
	p.initialized = true
	p.mu.Unlock()
	return StatusOK
}

// StartConnectingNonBlocking implements SecurityAdapter. There is no
// handshake, so the connection is usable immediately.
func (p *PlainAdapter) StartConnectingNonBlocking(conn net.Conn) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return StatusNotInitialized
	}
	p.conn = conn
	return StatusOK
}

// ContinueConnecting implements SecurityAdapter.
func (p *PlainAdapter) ContinueConnecting() int {
	if p.current() == nil {
		return StatusError
	}
	return StatusOK
}

// SendMessage implements SecurityAdapter.
func (p *PlainAdapter) SendMessage(data []byte) int {
	conn := p.current()
	if conn == nil {
		return StatusNotInitialized
	}
	n, err := conn.Write(data)
	if err != nil {
		return statusForError(err)
	}
	return n
}

// Read implements SecurityAdapter.
func (p *PlainAdapter) Read(buf []byte) int {
	conn := p.current()
	if conn == nil {
		return StatusNotInitialized
	}
	if p.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(p.ReadTimeout))
	}
	n, err := conn.Read(buf)
	if err != nil {
		return statusForError(err)
	}
	return n
}

// Reset implements SecurityAdapter. The socket belongs to the caller and
// is not closed.
func (p *PlainAdapter) Reset() {
	p.mu.Lock()
	p.conn = nil
	p.mu.Unlock()
}

func (p *PlainAdapter) current() net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

var _ SecurityAdapter = (*PlainAdapter)(nil)
