package consultation

import (
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the room and call need.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Call drives the call indicator: idle -> connecting -> active, and back to
// idle on toggle-off.
type Call struct {
	mu       sync.Mutex
	state    CallState
	delay    time.Duration
	after    AfterFunc
	pending  Timer
	gen      int
	closed   bool
	onChange func(CallState)
}

func NewCall(delay time.Duration, after AfterFunc, onChange func(CallState)) *Call {
	if after == nil {
		after = realAfterFunc
	}
	return &Call{
		state:    CallIdle,
		delay:    delay,
		after:    after,
		onChange: onChange,
	}
}

func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start moves an idle call to connecting and schedules the switch to active.
// It does nothing if a call is already connecting or active, or once the
// call is closed.
func (c *Call) Start() {
	c.mu.Lock()
	if c.state != CallIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = CallConnecting
	c.gen++
	gen := c.gen
	c.pending = c.after(c.delay, func() { c.connected(gen) })
	c.mu.Unlock()

	c.notify(CallConnecting)
}

func (c *Call) connected(gen int) {
	c.mu.Lock()
	// A stale timer from a call that was already toggled off.
	if c.gen != gen || c.state != CallConnecting {
		c.mu.Unlock()
		return
	}
	c.state = CallActive
	c.pending = nil
	c.mu.Unlock()

	c.notify(CallActive)
}

// Stop returns the call to idle and cancels a pending connect.
func (c *Call) Stop() {
	c.mu.Lock()
	if c.state == CallIdle {
		c.mu.Unlock()
		return
	}
	c.state = CallIdle
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.mu.Unlock()

	c.notify(CallIdle)
}

// Close stops the call for good; later Starts are ignored.
func (c *Call) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Stop()
}

// Toggle starts an idle call or stops a connecting/active one.
func (c *Call) Toggle() CallState {
	if c.State() == CallIdle {
		c.Start()
	} else {
		c.Stop()
	}
	return c.State()
}

func (c *Call) notify(s CallState) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
