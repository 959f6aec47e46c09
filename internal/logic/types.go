// Package logic contains the pure event model for blinkd.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical level of the output pair.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a level to its State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// EventType identifies what an Event reports.
type EventType string

const (
	EventLevel EventType = "LEVEL" // a scheduler firing
	EventEdge  EventType = "EDGE"  // a rising edge on the input
)

// Event is a single firing or edge, ready to publish.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Level     State  // LEVEL only
	Firing    uint64 // LEVEL only
	Edges     uint64 // EDGE only: running count
}

// LevelEvent builds the event for firing number firing, which set level.
func LevelEvent(t time.Time, level bool, firing uint64) Event {
	return Event{Timestamp: t, Type: EventLevel, Level: StateOf(level), Firing: firing}
}

// EdgeEvent builds the event for an edge that brought the count to edges.
func EdgeEvent(t time.Time, edges uint64) Event {
	return Event{Timestamp: t, Type: EventEdge, Edges: edges}
}

// Counts tracks firings and edges since the module was loaded.
type Counts struct {
	Firings uint64
	Edges   uint64
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
