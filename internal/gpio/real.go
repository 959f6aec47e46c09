//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Consumer is the label attached to every line the daemon requests.
const Consumer = "blinkd"

// RealPlatform claims lines on an actual GPIO chip using Linux GPIO character device.
type RealPlatform struct {
	chip *gpiocdev.Chip

	mu     sync.Mutex
	lines  map[int]*realLine
	inputs map[int]*realInput
}

// NewRealPlatform opens the named gpiochip (e.g. "gpiochip0").
func NewRealPlatform(chipName string) (*RealPlatform, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealPlatform{
		chip:   chip,
		lines:  make(map[int]*realLine),
		inputs: make(map[int]*realInput),
	}, nil
}

// RequestOutput claims pin as an output driven to initial.
func (p *RealPlatform) RequestOutput(pin int, initial bool) (Line, error) {
	if err := p.checkPin(pin); err != nil {
		return nil, err
	}
	l, err := p.chip.RequestLine(pin, gpiocdev.AsOutput(boolToValue(initial)))
	if err != nil {
		return nil, requestError(pin, err)
	}
	rl := &realLine{platform: p, pin: pin, line: l}
	p.track(rl)
	return rl, nil
}

// RequestInput claims pin as an input with pull-down and rising-edge detection.
// Edge events are delivered to whatever handler RegisterInterrupt later binds.
func (p *RealPlatform) RequestInput(pin int) (Line, error) {
	if err := p.checkPin(pin); err != nil {
		return nil, err
	}
	in := &realInput{pin: pin}
	l, err := p.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(in.dispatch))
	if err != nil {
		return nil, requestError(pin, err)
	}
	rl := &realLine{platform: p, pin: pin, line: l}
	p.mu.Lock()
	p.lines[pin] = rl
	p.inputs[pin] = in
	p.mu.Unlock()
	return rl, nil
}

// MapInterrupt returns the interrupt number for a claimed input.
// Userspace has no IRQ numbers, so the line offset stands in for one.
func (p *RealPlatform) MapInterrupt(pin int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inputs[pin]; !ok {
		return 0, fmt.Errorf("%w %d", ErrNoInterrupt, pin)
	}
	return pin, nil
}

// RegisterInterrupt binds handler to rising edges on the input mapped to irq.
func (p *RealPlatform) RegisterInterrupt(irq int, handler func()) (Interrupt, error) {
	p.mu.Lock()
	in, ok := p.inputs[irq]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoInterrupt, irq)
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.handler != nil {
		return nil, fmt.Errorf("irq %d: %w", irq, ErrBusy)
	}
	in.handler = handler
	return &realInterrupt{input: in}, nil
}

// Close releases any lines still held and closes the chip.
func (p *RealPlatform) Close() error {
	p.mu.Lock()
	lines := make([]*realLine, 0, len(p.lines))
	for _, l := range p.lines {
		lines = append(lines, l)
	}
	p.mu.Unlock()

	var err error
	for _, l := range lines {
		err = multierr.Append(err, l.Close())
	}
	if p.chip != nil {
		if cerr := p.chip.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close chip: %w", cerr))
		}
	}
	return err
}

func (p *RealPlatform) checkPin(pin int) error {
	if pin < 0 || pin >= p.chip.Lines() {
		return fmt.Errorf("%w %d (chip has %d lines)", ErrInvalidPin, pin, p.chip.Lines())
	}
	return nil
}

func (p *RealPlatform) track(l *realLine) {
	p.mu.Lock()
	p.lines[l.pin] = l
	p.mu.Unlock()
}

func (p *RealPlatform) forget(pin int) {
	p.mu.Lock()
	delete(p.lines, pin)
	delete(p.inputs, pin)
	p.mu.Unlock()
}

type realLine struct {
	platform *RealPlatform
	pin      int

	mu   sync.Mutex
	line *gpiocdev.Line
}

func (l *realLine) Pin() int { return l.pin }

func (l *realLine) Value() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return false, ErrClosed
	}
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", l.pin, err)
	}
	return v != 0, nil
}

func (l *realLine) SetValue(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return ErrClosed
	}
	if err := l.line.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("write pin %d: %w", l.pin, err)
	}
	return nil
}

// Close releases the line. For inputs this waits for the event handler
// goroutine to exit.
func (l *realLine) Close() error {
	l.mu.Lock()
	line := l.line
	l.line = nil
	l.mu.Unlock()
	if line == nil {
		return nil
	}
	l.platform.forget(l.pin)
	if err := line.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", l.pin, err)
	}
	return nil
}

// realInput routes gpiocdev edge events to the registered handler.
// The read lock is held across the handler call so Close can wait it out.
type realInput struct {
	pin     int
	mu      sync.RWMutex
	handler func()
}

func (in *realInput) dispatch(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.handler != nil {
		in.handler()
	}
}

type realInterrupt struct {
	input *realInput
	once  sync.Once
}

func (i *realInterrupt) IRQ() int { return i.input.pin }

func (i *realInterrupt) Close() error {
	i.once.Do(func() {
		i.input.mu.Lock()
		i.input.handler = nil
		i.input.mu.Unlock()
	})
	return nil
}

func requestError(pin int, err error) error {
	if errors.Is(err, unix.EBUSY) {
		return fmt.Errorf("request pin %d: %w", pin, ErrBusy)
	}
	return fmt.Errorf("request pin %d: %w", pin, err)
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
