package timer

import (
	"sort"
	"time"
)

// Manual is a deterministic Service driven by Advance. It is not safe for
// concurrent use.
type Manual struct {
	now    time.Duration
	seq    uint64
	timers []*manualTimer
}

// NewManual creates a manual clock at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the elapsed virtual time.
func (c *Manual) Now() time.Duration {
	return c.now
}

// NewTimer creates a stopped timer on this clock.
func (c *Manual) NewTimer(kind Kind, onExpiry func(Kind)) Timer {
	t := &manualTimer{clock: c, kind: kind, onExpiry: onExpiry}
	c.timers = append(c.timers, t)
	return t
}

// Running returns the number of armed timers.
func (c *Manual) Running() int {
	n := 0
	for _, t := range c.timers {
		if t.armed {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached. Timers armed by a callback fire in the same call when their
// deadline also falls inside the window.
func (c *Manual) Advance(d time.Duration) {
	target := c.now + d
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		c.now = next.deadline
		next.armed = false
		if next.onExpiry != nil {
			next.onExpiry(next.kind)
		}
	}
	c.now = target
}

// nextDue returns the armed timer with the earliest deadline not after target.
// Ties fire in arming order.
func (c *Manual) nextDue(target time.Duration) *manualTimer {
	var due []*manualTimer
	for _, t := range c.timers {
		if t.armed && t.deadline <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

type manualTimer struct {
	clock    *Manual
	kind     Kind
	onExpiry func(Kind)

	armed    bool
	deadline time.Duration
	seq      uint64
}

func (t *manualTimer) Start(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.clock.seq++
	t.seq = t.clock.seq
	t.armed = true
	t.deadline = t.clock.now + d
}

func (t *manualTimer) Stop() {
	t.armed = false
}

func (t *manualTimer) Running() bool {
	return t.armed
}

var _ Service = (*Manual)(nil)
