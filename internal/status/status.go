// Package status provides a thread-safe status tracker for the blinkd daemon.
// It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/blinkd/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Chip         string
	PrimaryPin   uint
	SecondaryPin uint
	InputPin     uint
	TogglePeriod time.Duration
	Heartbeat    time.Duration
	Broker       string
	HTTP         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Running       bool
	Level         logic.State
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	LastError     string
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the running state, level and counts wholesale.
// Called from runLoop after load, unload and on every heartbeat tick.
func (t *Tracker) Update(running bool, level logic.State, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Running = running
	t.snap.Level = level
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordFiring notes a scheduler firing. Stale firings are ignored. Firing 1
// always counts, since a reloaded module numbers its firings from 1 again.
func (t *Tracker) RecordFiring(level bool, firing uint64) {
	t.mu.Lock()
	if firing == 1 || firing > t.snap.Counts.Firings {
		t.snap.Counts.Firings = firing
		t.snap.Level = logic.StateOf(level)
	}
	t.mu.Unlock()
}

// RecordEdge notes the running edge count. Counts never go backwards within
// a load; a count of 1 starts a new load's count.
func (t *Tracker) RecordEdge(count uint64) {
	t.mu.Lock()
	if count == 1 || count > t.snap.Counts.Edges {
		t.snap.Counts.Edges = count
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetError records the last load failure. An empty string clears it.
func (t *Tracker) SetError(msg string) {
	t.mu.Lock()
	t.snap.LastError = msg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
