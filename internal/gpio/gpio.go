// Package gpio provides GPIO line claiming and edge interrupts with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Line is a claimed GPIO line, either input or output.
type Line interface {
	// Pin returns the line offset on the chip.
	Pin() int

	// Value reads the current logical level (true = active).
	Value() (bool, error)

	// SetValue drives an output line to the given level.
	SetValue(on bool) error

	// Close releases the line back to the platform.
	Close() error
}

// Interrupt is a registered edge handler bound to an interrupt number.
type Interrupt interface {
	// IRQ returns the interrupt number the handler is bound to.
	IRQ() int

	// Close unregisters the handler. It blocks until any running invocation
	// of the handler has returned. Safe to call more than once.
	Close() error
}

// Platform exposes the hardware operations the blink core consumes.
type Platform interface {
	// RequestOutput claims pin as an output driven to the initial level.
	RequestOutput(pin int, initial bool) (Line, error)

	// RequestInput claims pin as an input.
	RequestInput(pin int) (Line, error)

	// MapInterrupt returns the interrupt number for a claimed input pin.
	MapInterrupt(pin int) (int, error)

	// RegisterInterrupt binds a rising-edge handler to irq.
	RegisterInterrupt(irq int, handler func()) (Interrupt, error)
}

var (
	// ErrBusy is returned when a line or interrupt is already claimed.
	ErrBusy = errors.New("gpio: busy")

	// ErrInvalidPin is returned for offsets outside the chip.
	ErrInvalidPin = errors.New("gpio: invalid pin")

	// ErrNoInterrupt is returned when a pin has no interrupt mapping.
	ErrNoInterrupt = errors.New("gpio: no interrupt for pin")

	// ErrClosed is returned when operating on a released line.
	ErrClosed = errors.New("gpio: line closed")
)

// Pin defaults (BCM numbering)
const (
	DefaultPinPrimary   = 16
	DefaultPinSecondary = 18
	DefaultPinInput     = 17
)

// DefaultChip is the gpiochip the daemon opens unless configured otherwise.
const DefaultChip = "gpiochip0"
