// Package timer implements the exam countdown.
//
// The countdown is anchored on a fixed deadline (start + duration). Every tick
// recomputes the remaining time from that deadline and the injected clock, so
// late or skipped ticks never stretch or shrink the effective duration. There
// is no pause: once started, a Timer can only expire or be stopped.
package timer

import (
	"sync"
	"time"
)

// DefaultTickInterval is how often a running Timer re-evaluates its deadline.
const DefaultTickInterval = time.Second

// Timer counts down to a fixed deadline and fires onExpire exactly once.
type Timer struct {
	now      func() time.Time
	interval time.Duration
	onExpire func()
	onTick   func(remaining time.Duration)

	mu       sync.Mutex
	deadline time.Time
	started  bool
	stopped  bool
	stop     chan struct{}

	expireOnce sync.Once
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock injects the clock used for deadline comparisons.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		t.now = now
	}
}

// WithTickInterval sets how often the running loop evaluates the deadline.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithOnTick registers a callback receiving the remaining time on every tick.
func WithOnTick(fn func(remaining time.Duration)) Option {
	return func(t *Timer) {
		t.onTick = fn
	}
}

// New creates a stopped Timer.
func New(onExpire func(), opts ...Option) *Timer {
	t := &Timer{
		now:      time.Now,
		interval: DefaultTickInterval,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a countdown of the given duration from now.
func (t *Timer) Start(duration time.Duration) {
	t.StartAt(t.now(), duration)
}

// StartAt begins a countdown whose deadline is start + duration. Used to resume
// a session whose start time was recorded earlier. Starting twice is a no-op.
func (t *Timer) StartAt(start time.Time, duration time.Duration) {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.deadline = start.Add(duration)
	t.mu.Unlock()

	// A resumed session may already be past its deadline.
	if t.Tick() {
		return
	}
	go t.run()
}

func (t *Timer) run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.Tick() {
				return
			}
		}
	}
}

// Tick evaluates the deadline against the clock. It reports whether the timer
// has expired; onExpire runs on the first expiring tick only.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return t.stopped
	}
	remaining := t.deadline.Sub(t.now())
	t.mu.Unlock()

	if remaining > 0 {
		if t.onTick != nil {
			t.onTick(remaining)
		}
		return false
	}

	t.expireOnce.Do(func() {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
		if t.onTick != nil {
			t.onTick(0)
		}
		if t.onExpire != nil {
			t.onExpire()
		}
	})
	return true
}

// Remaining returns the time left before the deadline, never negative.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	remaining := t.deadline.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Deadline returns the fixed deadline; zero before Start.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Stop halts the countdown without firing onExpire. Safe to call repeatedly.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}
