package client

import (
	"sync"
	"time"

	"github.com/voxelab/presencenet"
)

type positionSample struct {
	pos      presencenet.Vec3
	rotation float64
}

// PositionThrottle rate-limits outbound movement to at most one send per
// interval. Samples arriving inside the window overwrite each other and the
// latest one goes out on the next tick; nothing is queued per frame.
type PositionThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	send     func(pos presencenet.Vec3, rotation float64)
	lastSent time.Time
	pending  *positionSample
	timer    *time.Timer
	closed   bool
}

// NewPositionThrottle creates a throttle that forwards at most one sample
// per interval through send.
func NewPositionThrottle(interval time.Duration, send func(pos presencenet.Vec3, rotation float64)) *PositionThrottle {
	return &PositionThrottle{interval: interval, send: send}
}

// Update records the latest movement sample. It is sent immediately when the
// window is open, otherwise coalesced into the next tick.
func (t *PositionThrottle) Update(pos presencenet.Vec3, rotation float64) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := time.Now()
	if t.timer == nil && now.Sub(t.lastSent) >= t.interval {
		t.lastSent = now
		t.mu.Unlock()
		t.send(pos, rotation)
		return
	}

	t.pending = &positionSample{pos: pos, rotation: rotation}
	if t.timer == nil {
		wait := t.interval - now.Sub(t.lastSent)
		t.timer = time.AfterFunc(wait, t.flush)
	}
	t.mu.Unlock()
}

func (t *PositionThrottle) flush() {
	t.mu.Lock()
	t.timer = nil
	sample := t.pending
	t.pending = nil
	if t.closed || sample == nil {
		t.mu.Unlock()
		return
	}
	t.lastSent = time.Now()
	t.mu.Unlock()

	t.send(sample.pos, sample.rotation)
}

// Close drops any pending sample and stops the tick.
func (t *PositionThrottle) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// TypingDebouncer turns a stream of keystroke notifications into a single
// typing:true at the start of a burst and a typing:false after the idle
// window or an explicit flush. Nothing is sent per keystroke.
type TypingDebouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	send   func(isTyping bool)
	active bool
	timer  *time.Timer
	closed bool
}

// NewTypingDebouncer creates a debouncer with the given idle window.
func NewTypingDebouncer(idle time.Duration, send func(isTyping bool)) *TypingDebouncer {
	return &TypingDebouncer{idle: idle, send: send}
}

// Touch notifies the debouncer of a keystroke.
func (d *TypingDebouncer) Touch() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	start := !d.active
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, d.expire)
	d.mu.Unlock()

	if start {
		d.send(true)
	}
}

// Flush ends the burst immediately: the message was sent or the input lost
// focus.
func (d *TypingDebouncer) Flush() {
	d.mu.Lock()
	if d.closed || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.send(false)
}

func (d *TypingDebouncer) expire() {
	d.mu.Lock()
	if d.closed || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	d.send(false)
}

// Close stops the debouncer without sending anything further.
func (d *TypingDebouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
