package gpio

import (
	"fmt"
	"sync"
)

// FakePlatform is a test double that simulates a gpiochip in memory.
// It records every operation so tests can assert on ordering.
// Safe for concurrent use.
type FakePlatform struct {
	// Lines is the number of lines on the simulated chip.
	Lines int

	// ClaimErrors, if set for a pin, is returned by RequestOutput/RequestInput.
	ClaimErrors map[int]error

	// NoInterrupt marks pins that have no interrupt mapping.
	NoInterrupt map[int]bool

	// RegisterError, if set, is returned by RegisterInterrupt.
	RegisterError error

	// WriteError, if set, is returned by SetValue on output lines.
	WriteError error

	mu     sync.Mutex
	ops    []string
	held   map[int]*fakeLine
	levels map[int]bool
	writes map[int][]bool
	irqs   map[int]*fakeIRQ
}

// NewFakePlatform creates a FakePlatform with 54 lines, matching a Pi header.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Lines:       54,
		ClaimErrors: make(map[int]error),
		NoInterrupt: make(map[int]bool),
		held:        make(map[int]*fakeLine),
		levels:      make(map[int]bool),
		writes:      make(map[int][]bool),
		irqs:        make(map[int]*fakeIRQ),
	}
}

// RequestOutput claims pin as an output driven to initial.
func (f *FakePlatform) RequestOutput(pin int, initial bool) (Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.claimable(pin); err != nil {
		return nil, err
	}
	l := &fakeLine{platform: f, pin: pin, output: true}
	f.held[pin] = l
	f.levels[pin] = initial
	f.record("output %d %s", pin, levelName(initial))
	return l, nil
}

// RequestInput claims pin as an input.
func (f *FakePlatform) RequestInput(pin int) (Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.claimable(pin); err != nil {
		return nil, err
	}
	l := &fakeLine{platform: f, pin: pin}
	f.held[pin] = l
	f.record("input %d", pin)
	return l, nil
}

// MapInterrupt returns pin+100 as the interrupt number for a held input.
func (f *FakePlatform) MapInterrupt(pin int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.held[pin]
	if !ok || l.output || f.NoInterrupt[pin] {
		f.record("map %d failed", pin)
		return 0, fmt.Errorf("%w %d", ErrNoInterrupt, pin)
	}
	f.record("map %d", pin)
	return pin + irqOffset, nil
}

// RegisterInterrupt binds handler to rising edges on irq.
func (f *FakePlatform) RegisterInterrupt(irq int, handler func()) (Interrupt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RegisterError != nil {
		f.record("register %d failed", irq)
		return nil, f.RegisterError
	}
	if _, ok := f.irqs[irq]; ok {
		f.record("register %d failed", irq)
		return nil, fmt.Errorf("irq %d: %w", irq, ErrBusy)
	}
	i := &fakeIRQ{platform: f, irq: irq, handler: handler}
	f.irqs[irq] = i
	f.record("register %d", irq)
	return i, nil
}

// Edge simulates a rising edge on pin. The registered handler, if any, runs
// synchronously on the calling goroutine. Returns true if a handler ran.
func (f *FakePlatform) Edge(pin int) bool {
	f.mu.Lock()
	f.levels[pin] = true
	i := f.irqs[pin+irqOffset]
	f.mu.Unlock()
	if i == nil {
		return false
	}
	return i.fire()
}

// SetInput sets the level an input line reads back.
func (f *FakePlatform) SetInput(pin int, on bool) {
	f.mu.Lock()
	f.levels[pin] = on
	f.mu.Unlock()
}

// Level returns the last level driven on or set for pin.
func (f *FakePlatform) Level(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// Writes returns the levels written to pin via SetValue, in order.
func (f *FakePlatform) Writes(pin int) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes[pin]...)
}

// Held returns the number of lines and interrupts currently claimed.
func (f *FakePlatform) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held) + len(f.irqs)
}

// IsHeld reports whether pin is currently claimed.
func (f *FakePlatform) IsHeld(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.held[pin]
	return ok
}

// Ops returns the recorded operation log.
func (f *FakePlatform) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// ResetOps clears the operation log.
func (f *FakePlatform) ResetOps() {
	f.mu.Lock()
	f.ops = nil
	f.mu.Unlock()
}

// irqOffset separates fake interrupt numbers from pin numbers so tests catch
// code that confuses the two.
const irqOffset = 100

// claimable must be called with f.mu held.
func (f *FakePlatform) claimable(pin int) error {
	if err := f.ClaimErrors[pin]; err != nil {
		f.record("claim %d failed", pin)
		return err
	}
	if pin < 0 || pin >= f.Lines {
		f.record("claim %d failed", pin)
		return fmt.Errorf("%w %d", ErrInvalidPin, pin)
	}
	if _, ok := f.held[pin]; ok {
		f.record("claim %d failed", pin)
		return fmt.Errorf("request pin %d: %w", pin, ErrBusy)
	}
	return nil
}

// record must be called with f.mu held.
func (f *FakePlatform) record(format string, args ...interface{}) {
	f.ops = append(f.ops, fmt.Sprintf(format, args...))
}

type fakeLine struct {
	platform *FakePlatform
	pin      int
	output   bool
	closed   bool
}

func (l *fakeLine) Pin() int { return l.pin }

func (l *fakeLine) Value() (bool, error) {
	f := l.platform
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.closed {
		return false, ErrClosed
	}
	return f.levels[l.pin], nil
}

func (l *fakeLine) SetValue(on bool) error {
	f := l.platform
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if !l.output {
		return fmt.Errorf("write pin %d: not an output", l.pin)
	}
	if f.WriteError != nil {
		return f.WriteError
	}
	f.levels[l.pin] = on
	f.writes[l.pin] = append(f.writes[l.pin], on)
	f.record("write %d %s", l.pin, levelName(on))
	return nil
}

func (l *fakeLine) Close() error {
	f := l.platform
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	delete(f.held, l.pin)
	f.record("release %d", l.pin)
	return nil
}

type fakeIRQ struct {
	platform *FakePlatform
	irq      int

	mu      sync.RWMutex
	handler func()
}

func (i *fakeIRQ) IRQ() int { return i.irq }

func (i *fakeIRQ) fire() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.handler == nil {
		return false
	}
	i.handler()
	return true
}

func (i *fakeIRQ) Close() error {
	i.mu.Lock()
	wasSet := i.handler != nil
	i.handler = nil
	i.mu.Unlock()
	if !wasSet {
		return nil
	}
	f := i.platform
	f.mu.Lock()
	delete(f.irqs, i.irq)
	f.record("unregister %d", i.irq)
	f.mu.Unlock()
	return nil
}

func levelName(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
