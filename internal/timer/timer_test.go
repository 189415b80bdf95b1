package timer_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stemsi/exstem-proctor/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestTimer_ExpiresExactlyOnceAfterDeadline(t *testing.T) {
	clock := newClock()
	var fired atomic.Int32

	tm := timer.New(func() { fired.Add(1) },
		timer.WithClock(clock.Now),
		timer.WithTickInterval(time.Hour),
	)
	tm.Start(time.Minute)
	defer tm.Stop()

	assert.False(t, tm.Tick())
	assert.Equal(t, int32(0), fired.Load())

	clock.Advance(60 * time.Second)

	assert.True(t, tm.Tick())
	assert.True(t, tm.Tick())
	assert.Equal(t, int32(1), fired.Load())
}

func TestTimer_RemainingComesFromDeadlineNotTickCount(t *testing.T) {
	clock := newClock()
	tm := timer.New(nil, timer.WithClock(clock.Now), timer.WithTickInterval(time.Hour))
	tm.Start(10 * time.Minute)
	defer tm.Stop()

	// No ticks at all while the clock jumps, as a throttled background tab would.
	clock.Advance(7 * time.Minute)
	assert.Equal(t, 3*time.Minute, tm.Remaining())

	// Many ticks without clock movement do not consume time.
	for i := 0; i < 100; i++ {
		tm.Tick()
	}
	assert.Equal(t, 3*time.Minute, tm.Remaining())
}

func TestTimer_StartAtPastDeadlineExpiresImmediately(t *testing.T) {
	clock := newClock()
	var fired atomic.Int32

	tm := timer.New(func() { fired.Add(1) }, timer.WithClock(clock.Now), timer.WithTickInterval(time.Hour))
	tm.StartAt(clock.Now().Add(-31*time.Minute), 30*time.Minute)
	defer tm.Stop()

	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, time.Duration(0), tm.Remaining())
}

func TestTimer_StopPreventsExpiry(t *testing.T) {
	clock := newClock()
	var fired atomic.Int32

	tm := timer.New(func() { fired.Add(1) }, timer.WithClock(clock.Now), timer.WithTickInterval(time.Hour))
	tm.Start(time.Minute)
	tm.Stop()
	tm.Stop()

	clock.Advance(2 * time.Minute)
	tm.Tick()
	assert.Equal(t, int32(0), fired.Load())
}

func TestTimer_OnTickReportsRemaining(t *testing.T) {
	clock := newClock()
	var seen []time.Duration

	tm := timer.New(nil,
		timer.WithClock(clock.Now),
		timer.WithTickInterval(time.Hour),
		timer.WithOnTick(func(d time.Duration) { seen = append(seen, d) }),
	)
	tm.Start(2 * time.Minute)
	defer tm.Stop()

	clock.Advance(90 * time.Second)
	tm.Tick()
	clock.Advance(time.Minute)
	tm.Tick()

	require.Len(t, seen, 3)
	assert.Equal(t, 2*time.Minute, seen[0])
	assert.Equal(t, 30*time.Second, seen[1])
	assert.Equal(t, time.Duration(0), seen[2])
}

func TestTimer_RunningLoopFires(t *testing.T) {
	done := make(chan struct{})
	tm := timer.New(func() { close(done) }, timer.WithTickInterval(5*time.Millisecond))
	tm.Start(20 * time.Millisecond)
	defer tm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}
}
