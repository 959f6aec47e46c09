package blink

import "github.com/sirupsen/logrus"

// ActuatorPair drives two output lines to the same level.
type ActuatorPair struct {
	primary   *ClaimedLine
	secondary *ClaimedLine
	log       logrus.FieldLogger
}

// NewActuatorPair takes ownership of two claimed output lines for driving.
// The caller still releases them.
func NewActuatorPair(primary, secondary *ClaimedLine, log logrus.FieldLogger) *ActuatorPair {
	return &ActuatorPair{primary: primary, secondary: secondary, log: orDiscard(log)}
}

// SetLevel writes level to primary then secondary.
// A write on a held line is not expected to fail; if it does, it is logged.
func (a *ActuatorPair) SetLevel(level bool) {
	for _, l := range [...]*ClaimedLine{a.primary, a.secondary} {
		if err := l.Write(level); err != nil {
			a.log.WithError(err).WithField("pin", l.Pin()).Warn("set level failed")
		}
	}
}
