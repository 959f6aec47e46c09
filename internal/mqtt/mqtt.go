// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/blinkd/internal/logic"
)

// Topic is the MQTT topic for level and edge events.
const Topic = "blinkd/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "blinkd/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a level or edge event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "LOAD_FAILED", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", or the load error
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Blink BlinkPayload `json:"blink"`
}

// BlinkPayload contains the event details. Level and Firing are set for
// LEVEL events, Edges for EDGE events.
type BlinkPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Level     string `json:"level,omitempty"`
	Firing    uint64 `json:"firing,omitempty"`
	Edges     uint64 `json:"edges,omitempty"`
}

// FormatPayload creates the JSON payload for an event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Blink: BlinkPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Level:     string(event.Level),
			Firing:    event.Firing,
			Edges:     event.Edges,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, SHUTDOWN) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(logic.Event) error       { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }
