// Package blink drives two output lines as a square wave and counts rising
// edges on an input line. A Module owns every claimed resource between Load
// and Unload; nothing is held in package state.
package blink

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/blinkd/internal/gpio"
)

// Observer receives diagnostics from the firing and edge contexts.
// Both methods must return promptly and must not call back into the Module.
type Observer interface {
	Fired(level bool, firing uint64)
	Edge(count uint64)
}

// Options configures a Module. Log and Observer are also called from the edge
// dispatch context, so neither may block.
type Options struct {
	Platform gpio.Platform
	Clock    Clock              // nil uses SystemClock
	Log      logrus.FieldLogger // nil discards
	Observer Observer           // optional
}

// Snapshot is a point-in-time view of the module for diagnostics.
type Snapshot struct {
	Running  bool
	Level    bool
	Firings  uint64
	Edges    uint64
	Settings Settings
}

// Module is the load/unload lifecycle around the blink loop and edge counter.
type Module struct {
	platform gpio.Platform
	clock    Clock
	log      logrus.FieldLogger
	observer Observer

	mu        sync.Mutex
	running   bool
	settings  Settings
	primary   *ClaimedLine
	secondary *ClaimedLine
	input     *ClaimedLine
	pair      *ActuatorPair
	watcher   *InputWatcher
	sched     *Scheduler
	lastEdges uint64
}

// New creates an unloaded Module.
func New(opts Options) *Module {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Module{
		platform: opts.Platform,
		clock:    clock,
		log:      orDiscard(opts.Log),
		observer: opts.Observer,
	}
}

// Load acquires every resource in order and starts the scheduler. On any
// failure everything acquired so far is released in reverse order and a
// *LoadError is returned; the module is then unloaded with nothing held.
//
// If the interrupt cannot be set up, Load fails; there is no degraded mode.
func (m *Module) Load(cfg Config) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyLoaded
	}

	s, err := cfg.Normalize()
	if err != nil {
		m.log.WithError(err).WithField("step", StepConfig).Error("load failed")
		return &LoadError{Step: StepConfig, Err: err}
	}

	var undo undoStack
	defer func() {
		if err != nil {
			undo.unwind()
		}
	}()

	primary, err := m.claim(StepPrimary, s.PrimaryPin, Output)
	if err != nil {
		return err
	}
	undo.push(m.releaser(StepPrimary, primary))

	secondary, err := m.claim(StepSecondary, s.SecondaryPin, Output)
	if err != nil {
		return err
	}
	undo.push(m.releaser(StepSecondary, secondary))

	input, err := m.claim(StepInput, s.InputPin, Input)
	if err != nil {
		return err
	}
	undo.push(m.releaser(StepInput, input))

	watcher, err := NewInputWatcher(m.platform, input, m.edge)
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{"step": StepInterrupt, "pin": s.InputPin}).Error("load failed")
		return &LoadError{Step: StepInterrupt, Pin: s.InputPin, Err: err}
	}
	m.log.WithFields(logrus.Fields{"step": StepInterrupt, "pin": s.InputPin, "irq": watcher.IRQ()}).Info("interrupt registered")

	pair := NewActuatorPair(primary, secondary, m.log)
	sched := NewScheduler(m.clock)
	// Start only fails on an armed scheduler and this one is new.
	_ = sched.Start(s.TogglePeriod, m.fire(pair))

	m.settings = s
	m.primary, m.secondary, m.input = primary, secondary, input
	m.pair, m.watcher, m.sched = pair, watcher, sched
	m.lastEdges = 0
	m.running = true
	m.log.WithField("period", s.TogglePeriod).Info("loaded")
	return nil
}

// Unload stops the scheduler, turns the outputs off and releases everything
// in reverse acquisition order. Every step runs regardless of earlier
// failures, which are logged and not returned. Unload on an unloaded module
// does nothing.
func (m *Module) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.log.Debug("unload: not loaded")
		return
	}

	m.sched.Stop()
	m.log.Info("scheduler stopped")

	m.pair.SetLevel(false)
	m.log.Info("outputs off")

	if err := m.watcher.Unregister(); err != nil {
		m.log.WithError(err).WithField("step", StepInterrupt).Warn("unregister failed")
	} else {
		m.log.WithField("step", StepInterrupt).Info("interrupt unregistered")
	}
	m.lastEdges = m.watcher.Count()

	m.releaser(StepInput, m.input)()
	m.releaser(StepSecondary, m.secondary)()
	m.releaser(StepPrimary, m.primary)()

	m.primary, m.secondary, m.input = nil, nil, nil
	m.pair, m.watcher, m.sched = nil, nil, nil
	m.running = false
	m.log.WithField("edges", m.lastEdges).Info("unloaded")
}

// OnLoad is the host entry point for Load.
func (m *Module) OnLoad(cfg Config) error { return m.Load(cfg) }

// OnUnload is the host entry point for Unload.
func (m *Module) OnUnload() { m.Unload() }

// Running reports whether the module is loaded.
func (m *Module) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// EdgeCount returns the edges counted in the current load, or the final
// count of the previous load once unloaded.
func (m *Module) EdgeCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return m.watcher.Count()
	}
	return m.lastEdges
}

// Snapshot returns the current state for diagnostics. Level and counts are
// read without synchronizing with the firing and edge contexts.
func (m *Module) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Running:  m.running,
		Settings: m.settings,
		Edges:    m.lastEdges,
	}
	if m.running {
		snap.Level = m.sched.Level()
		snap.Firings = m.sched.Firings()
		snap.Edges = m.watcher.Count()
	}
	return snap
}

func (m *Module) claim(step string, pin PinID, dir Direction) (*ClaimedLine, error) {
	log := m.log.WithFields(logrus.Fields{"step": step, "pin": pin})
	l, err := Claim(m.platform, pin, dir, false)
	if err != nil {
		log.WithError(err).Error("load failed")
		return nil, &LoadError{Step: step, Pin: pin, Err: err}
	}
	log.Infof("claimed %s", dir)
	return l, nil
}

func (m *Module) releaser(step string, l *ClaimedLine) func() {
	return func() {
		log := m.log.WithFields(logrus.Fields{"step": step, "pin": l.Pin()})
		if err := l.Release(); err != nil {
			log.WithError(err).Warn("release failed")
			return
		}
		log.Info("released")
	}
}

func (m *Module) fire(pair *ActuatorPair) FireFunc {
	return func(level bool, firing uint64) {
		pair.SetLevel(level)
		m.log.WithFields(logrus.Fields{"level": levelName(level), "firing": firing}).Info("toggle")
		if m.observer != nil {
			m.observer.Fired(level, firing)
		}
	}
}

// edge runs in the edge dispatch context and holds the binding's read lock
// throughout, so Unregister waits for it.
func (m *Module) edge(count uint64) {
	m.log.WithField("edges", count).Info("edge")
	if m.observer != nil {
		m.observer.Edge(count)
	}
}

// undoStack holds release actions for resources acquired during Load.
type undoStack []func()

func (u *undoStack) push(f func()) {
	*u = append(*u, f)
}

// unwind runs the actions newest first.
func (u *undoStack) unwind() {
	for i := len(*u) - 1; i >= 0; i-- {
		(*u)[i]()
	}
	*u = nil
}

func levelName(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
