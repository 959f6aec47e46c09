package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Running       bool       `json:"running"`
	Level         string     `json:"level"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Error         string     `json:"error,omitempty"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of firing and edge counts.
type CountsJSON struct {
	Firings uint64 `json:"firings"`
	Edges   uint64 `json:"edges"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip                string `json:"chip"`
	PrimaryPin          uint   `json:"primary_pin"`
	SecondaryPin        uint   `json:"secondary_pin"`
	InputPin            uint   `json:"input_pin"`
	TogglePeriodSeconds int64  `json:"toggle_period_seconds"`
	HeartbeatSeconds    int64  `json:"heartbeat_seconds"`
	Broker              string `json:"broker"`
	HTTP                string `json:"http"`
}

func buildInner(snap Snapshot) StatusInner {
	level := string(snap.Level)
	if level == "" {
		level = "UNKNOWN"
	}

	return StatusInner{
		Running:       snap.Running,
		Level:         level,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Firings: snap.Counts.Firings,
			Edges:   snap.Counts.Edges,
		},
		Error: snap.LastError,
		Config: ConfigJSON{
			Chip:                snap.Config.Chip,
			PrimaryPin:          snap.Config.PrimaryPin,
			SecondaryPin:        snap.Config.SecondaryPin,
			InputPin:            snap.Config.InputPin,
			TogglePeriodSeconds: int64(snap.Config.TogglePeriod / time.Second),
			HeartbeatSeconds:    int64(snap.Config.Heartbeat / time.Second),
			Broker:              snap.Config.Broker,
			HTTP:                snap.Config.HTTP,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
