package blink

import (
	"fmt"
	"time"

	"github.com/sweeney/blinkd/internal/gpio"
)

// PinID identifies a GPIO line by its offset on the chip.
type PinID uint

// Defaults applied to unset Config fields.
const (
	DefaultPrimaryPin   PinID = gpio.DefaultPinPrimary
	DefaultSecondaryPin PinID = gpio.DefaultPinSecondary
	DefaultInputPin     PinID = gpio.DefaultPinInput

	DefaultTogglePeriod = time.Second
)

// Config is the module configuration as supplied by the loader.
// Nil pins and a zero period take their defaults individually.
type Config struct {
	PrimaryPin   *PinID
	SecondaryPin *PinID
	InputPin     *PinID
	TogglePeriod time.Duration
}

// Settings is a normalized Config with every field concrete.
type Settings struct {
	PrimaryPin   PinID
	SecondaryPin PinID
	InputPin     PinID
	TogglePeriod time.Duration
}

// Pin returns a pointer to p, for populating Config.
func Pin(p PinID) *PinID {
	return &p
}

// Normalize applies defaults and validates the result.
func (c Config) Normalize() (Settings, error) {
	s := Settings{
		PrimaryPin:   pinOr(c.PrimaryPin, DefaultPrimaryPin),
		SecondaryPin: pinOr(c.SecondaryPin, DefaultSecondaryPin),
		InputPin:     pinOr(c.InputPin, DefaultInputPin),
		TogglePeriod: c.TogglePeriod,
	}
	if s.TogglePeriod == 0 {
		s.TogglePeriod = DefaultTogglePeriod
	}

	switch {
	case s.PrimaryPin == s.SecondaryPin:
		return Settings{}, fmt.Errorf("%w: primary and secondary both use pin %d", ErrInvalidConfiguration, s.PrimaryPin)
	case s.PrimaryPin == s.InputPin:
		return Settings{}, fmt.Errorf("%w: primary and input both use pin %d", ErrInvalidConfiguration, s.PrimaryPin)
	case s.SecondaryPin == s.InputPin:
		return Settings{}, fmt.Errorf("%w: secondary and input both use pin %d", ErrInvalidConfiguration, s.SecondaryPin)
	case s.TogglePeriod < 0:
		return Settings{}, fmt.Errorf("%w: toggle period %v", ErrInvalidConfiguration, s.TogglePeriod)
	}
	return s, nil
}

func pinOr(p *PinID, def PinID) PinID {
	if p == nil {
		return def
	}
	return *p
}
