package blink

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sweeney/blinkd/internal/gpio"
)

// InputWatcher counts rising edges on a claimed input line.
type InputWatcher struct {
	line   *ClaimedLine
	irq    int
	onEdge func(count uint64)

	count atomic.Uint64

	mu   sync.Mutex
	intr gpio.Interrupt
}

// NewInputWatcher maps line to an interrupt and registers a rising-edge
// handler on it. onEdge, if non-nil, is called from the handler with the new
// count and must not block.
func NewInputWatcher(p gpio.Platform, line *ClaimedLine, onEdge func(count uint64)) (*InputWatcher, error) {
	irq, err := p.MapInterrupt(line.offset())
	if err != nil {
		return nil, fmt.Errorf("%w: pin %d: %w", ErrInterruptMappingFailed, line.Pin(), err)
	}

	w := &InputWatcher{line: line, irq: irq, onEdge: onEdge}
	intr, err := p.RegisterInterrupt(irq, w.handle)
	if err != nil {
		return nil, fmt.Errorf("%w: irq %d: %w", ErrInterruptRegistrationFailed, irq, err)
	}
	w.intr = intr
	return w, nil
}

// handle runs in the edge dispatch context. It must stay short.
func (w *InputWatcher) handle() {
	n := w.count.Add(1)
	if w.onEdge != nil {
		w.onEdge(n)
	}
}

// IRQ returns the interrupt number the handler is bound to.
func (w *InputWatcher) IRQ() int { return w.irq }

// Count returns the number of edges seen so far.
func (w *InputWatcher) Count() uint64 { return w.count.Load() }

// Registered reports whether the handler is still bound.
func (w *InputWatcher) Registered() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.intr != nil
}

// Unregister unbinds the handler, waiting for any running invocation to
// return. It must be called before the input line is released.
func (w *InputWatcher) Unregister() error {
	w.mu.Lock()
	intr := w.intr
	w.intr = nil
	w.mu.Unlock()
	if intr == nil {
		return nil
	}
	return intr.Close()
}
