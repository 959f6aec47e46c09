//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPlatform is not available on non-Linux platforms.
type RealPlatform struct{}

// NewRealPlatform returns an error on non-Linux platforms.
func NewRealPlatform(chipName string) (*RealPlatform, error) {
	return nil, errUnsupported
}

// RequestOutput is not implemented on non-Linux platforms.
func (p *RealPlatform) RequestOutput(pin int, initial bool) (Line, error) {
	return nil, errUnsupported
}

// RequestInput is not implemented on non-Linux platforms.
func (p *RealPlatform) RequestInput(pin int) (Line, error) {
	return nil, errUnsupported
}

// MapInterrupt is not implemented on non-Linux platforms.
func (p *RealPlatform) MapInterrupt(pin int) (int, error) {
	return 0, errUnsupported
}

// RegisterInterrupt is not implemented on non-Linux platforms.
func (p *RealPlatform) RegisterInterrupt(irq int, handler func()) (Interrupt, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (p *RealPlatform) Close() error {
	return nil
}
