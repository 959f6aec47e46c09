package blink

import (
	"fmt"
	"sync"

	"github.com/sweeney/blinkd/internal/gpio"
)

// Direction is the direction a line is claimed for.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// ClaimedLine owns one claimed GPIO line until Release.
type ClaimedLine struct {
	pin PinID
	dir Direction

	mu   sync.Mutex // held across platform calls so Release waits out a write
	line gpio.Line
}

// Claim reserves pin for dir. An output is driven to initial as part of the
// request, so no other level is ever observable. Platform refusals are
// reported as ErrResourceUnavailable.
func Claim(p gpio.Platform, pin PinID, dir Direction, initial bool) (*ClaimedLine, error) {
	var (
		l   gpio.Line
		err error
	)
	if dir == Output {
		l, err = p.RequestOutput(int(pin), initial)
	} else {
		l, err = p.RequestInput(int(pin))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s pin %d: %w", ErrResourceUnavailable, dir, pin, err)
	}
	return &ClaimedLine{pin: pin, dir: dir, line: l}, nil
}

// Pin returns the claimed pin.
func (c *ClaimedLine) Pin() PinID { return c.pin }

// Direction returns the direction the line was claimed for.
func (c *ClaimedLine) Direction() Direction { return c.dir }

// Held reports whether the line has not yet been released.
func (c *ClaimedLine) Held() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line != nil
}

// Read returns the current level of the line.
func (c *ClaimedLine) Read() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return false, ErrReleased
	}
	return c.line.Value()
}

// Write drives the line to level.
func (c *ClaimedLine) Write(level bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return ErrReleased
	}
	return c.line.SetValue(level)
}

// Release returns the line to the platform. Only the first call does
// anything; later calls, and calls on a nil line, return nil.
// The level is left as is; callers drive outputs to a safe level first.
func (c *ClaimedLine) Release() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	l := c.line
	c.line = nil
	c.mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

// offset returns the pin as a platform line offset.
func (c *ClaimedLine) offset() int {
	return int(c.pin)
}
