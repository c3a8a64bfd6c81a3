package timer

import (
	"sync"
	"time"
)

// Kind identifies which reporting period a timer tracks.
type Kind uint8

const (
	// KindPmin is the minimum period timer.
	KindPmin Kind = iota + 1

	// KindPmax is the maximum period timer.
	KindPmax
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPmin:
		return "PMIN"
	case KindPmax:
		return "PMAX"
	default:
		return "UNKNOWN"
	}
}

// Timer is a one-shot countdown.
type Timer interface {
	// Start arms the timer, replacing any running countdown.
	Start(d time.Duration)

	// Stop disarms the timer without invoking the expiry callback.
	Stop()

	// Running returns true while a countdown is armed.
	Running() bool
}

// Service creates timers. The callback receives the kind the timer was created with.
type Service interface {
	NewTimer(kind Kind, onExpiry func(Kind)) Timer
}

// DispatchFunc runs fn on the caller's event goroutine.
type DispatchFunc func(fn func())

// timerKey uniquely identifies a timer.
type timerKey struct {
	id   uint64
	kind Kind
}

// Manager creates wall-clock timers backed by time.AfterFunc.
type Manager struct {
	mu sync.Mutex

	// Armed timers by key
	active map[timerKey]*managedTimer

	nextID   uint64
	dispatch DispatchFunc
}

// NewManager creates a timer manager. A nil dispatch runs expiries directly on
// the timer goroutine.
func NewManager(dispatch DispatchFunc) *Manager {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Manager{
		active:   make(map[timerKey]*managedTimer),
		dispatch: dispatch,
	}
}

// NewTimer creates a stopped timer.
func (m *Manager) NewTimer(kind Kind, onExpiry func(Kind)) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return &managedTimer{
		m:        m,
		key:      timerKey{id: m.nextID, kind: kind},
		onExpiry: onExpiry,
	}
}

// Count returns the number of armed timers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// StopAll disarms every timer (e.g., on shutdown).
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, t := range m.active {
		t.timer.Stop()
		t.gen++
		delete(m.active, key)
	}
}

type managedTimer struct {
	m        *Manager
	key      timerKey
	onExpiry func(Kind)

	// Guarded by m.mu
	timer *time.Timer
	gen   uint64
}

func (t *managedTimer) Start(d time.Duration) {
	if d < 0 {
		d = 0
	}

	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.m.dispatch(func() { t.expire(gen) })
	})
	t.m.active[t.key] = t
}

func (t *managedTimer) Stop() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	delete(t.m.active, t.key)
}

func (t *managedTimer) Running() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	_, ok := t.m.active[t.key]
	return ok
}

// expire runs on the dispatch goroutine.
func (t *managedTimer) expire(gen uint64) {
	t.m.mu.Lock()
	if gen != t.gen {
		t.m.mu.Unlock()
		return
	}
	t.gen++
	t.timer = nil
	delete(t.m.active, t.key)
	callback := t.onExpiry
	t.m.mu.Unlock()

	// Call callback outside lock
	if callback != nil {
		callback(t.key.kind)
	}
}

var _ Service = (*Manager)(nil)
