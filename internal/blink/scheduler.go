package blink

import (
	"sync"
	"sync/atomic"
	"time"
)

// FireFunc is called on every firing with the level to drive and the firing number.
type FireFunc func(level bool, firing uint64)

// Scheduler toggles a level every period and hands it to a FireFunc.
// It runs at most one firing at a time.
type Scheduler struct {
	clock Clock

	mu   sync.Mutex
	quit chan struct{}
	done chan struct{}

	// Written only by the firing goroutine; atomics let diagnostics read them.
	level   atomic.Bool
	firings atomic.Uint64
}

// NewScheduler creates an idle scheduler on clock. A nil clock uses SystemClock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{clock: clock}
}

// Start arms the scheduler. Each firing drives the current toggle state and
// then flips it, so firing n drives on when n is even and off when n is odd.
func (s *Scheduler) Start(period time.Duration, fn FireFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return ErrSchedulerRunning
	}
	s.level.Store(false)
	s.firings.Store(0)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(period, fn, s.quit, s.done)
	return nil
}

// Stop disarms the scheduler. When it returns any in-flight firing has
// completed and no further firing will happen. Stop on an idle scheduler
// does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit == nil {
		return
	}
	close(s.quit)
	<-s.done
	s.quit = nil
	s.done = nil
}

// Running reports whether the scheduler is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit != nil
}

// Level returns the level driven by the latest firing, or off before the first.
func (s *Scheduler) Level() bool { return s.level.Load() }

// Firings returns the number of firings since Start.
func (s *Scheduler) Firings() uint64 { return s.firings.Load() }

func (s *Scheduler) run(period time.Duration, fn FireFunc, quit, done chan struct{}) {
	defer close(done)

	var next bool
	t := s.clock.NewTimer(period)
	for {
		select {
		case <-quit:
			t.Stop()
			return
		case <-t.C():
			select {
			case <-quit:
				return
			default:
			}
			level := next
			next = !next
			s.level.Store(level)
			fn(level, s.firings.Add(1))
			t = s.clock.NewTimer(period)
		}
	}
}
