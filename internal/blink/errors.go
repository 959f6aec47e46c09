package blink

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when two of the three pins coincide
	// or the toggle period is not positive.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrResourceUnavailable is returned when a line is already claimed or out of range.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrInterruptMappingFailed is returned when the input line has no interrupt.
	ErrInterruptMappingFailed = errors.New("interrupt mapping failed")

	// ErrInterruptRegistrationFailed is returned when the handler cannot be bound.
	ErrInterruptRegistrationFailed = errors.New("interrupt registration failed")

	// ErrAlreadyLoaded is returned by Load on a running module.
	ErrAlreadyLoaded = errors.New("module already loaded")

	// ErrSchedulerRunning is returned by Start on an armed scheduler.
	ErrSchedulerRunning = errors.New("scheduler already running")

	// ErrReleased is returned when reading or writing a released line.
	ErrReleased = errors.New("line released")
)

// Load steps, in acquisition order.
const (
	StepConfig    = "config"
	StepPrimary   = "primary"
	StepSecondary = "secondary"
	StepInput     = "input"
	StepInterrupt = "interrupt"
)

// LoadError reports which load step failed. Unwrap reaches the sentinel
// error, so callers match with errors.Is.
type LoadError struct {
	Step string
	Pin  PinID
	Err  error
}

func (e *LoadError) Error() string {
	if e.Step == StepConfig {
		return fmt.Sprintf("load %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("load %s pin %d: %v", e.Step, e.Pin, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
