package blink

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock arms one-shot timers for the scheduler.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer as returned by Clock.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock is the wall clock, backed by time.Timer.
type SystemClock struct{}

// NewTimer returns a timer that fires after d.
func (SystemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }

// ManualClock is a Clock whose timers fire only when told to.
// Fire blocks until the scheduler has re-armed, so after Fire returns the
// firing it triggered has completed.
type ManualClock struct {
	armed chan *manualTimer

	mu        sync.Mutex
	next      *manualTimer
	durations []time.Duration
}

// NewManualClock creates a ManualClock.
func NewManualClock() *ManualClock {
	return &ManualClock{armed: make(chan *manualTimer, 16)}
}

// NewTimer arms a timer that fires on the next call to Fire.
func (c *ManualClock) NewTimer(d time.Duration) Timer {
	t := &manualTimer{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.durations = append(c.durations, d)
	c.mu.Unlock()
	c.armed <- t
	return t
}

// Fire triggers the pending timer and waits for it to be re-armed.
// Returns false if no timer was armed within a second.
func (c *ManualClock) Fire() bool {
	t := c.await()
	if t == nil {
		return false
	}
	t.ch <- time.Now()
	next := c.await()
	c.mu.Lock()
	c.next = next
	c.mu.Unlock()
	return true
}

// Durations returns the durations of every timer armed so far.
func (c *ManualClock) Durations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.durations...)
}

func (c *ManualClock) await() *manualTimer {
	c.mu.Lock()
	t := c.next
	c.next = nil
	c.mu.Unlock()
	if t != nil && !t.stopped.Load() {
		return t
	}

	deadline := time.After(time.Second)
	for {
		select {
		case t := <-c.armed:
			if !t.stopped.Load() {
				return t
			}
		case <-deadline:
			return nil
		}
	}
}

type manualTimer struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTimer) C() <-chan time.Time { return t.ch }

func (t *manualTimer) Stop() bool {
	return !t.stopped.Swap(true) && len(t.ch) == 0
}
