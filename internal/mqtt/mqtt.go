// Package mqtt publishes rig events and system lifecycle messages.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/relay-rig/internal/rig"
)

// Topic is the MQTT topic for rig events.
const Topic = "hvac/relay-rig/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "hvac/relay-rig/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a rig event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event rig.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Notifier adapts a Publisher to rig.Notifier.
type Notifier struct {
	Publisher Publisher
}

// Notify publishes ev.
func (n Notifier) Notify(ev rig.Event) error {
	return n.Publisher.Publish(ev)
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Rig RigPayload `json:"rig"`
}

// RigPayload contains the rig event details.
type RigPayload struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Profile   ProfilePayload `json:"profile"`
	Config    string         `json:"config,omitempty"`
	Pins      []string       `json:"pins,omitempty"`
	Result    string         `json:"result,omitempty"`
}

// ProfilePayload is the thermostat profile at the time of the event.
type ProfilePayload struct {
	Model    string `json:"model"`
	HasPEK   bool   `json:"has_pek"`
	HasRH    bool   `json:"has_rh"`
	HasRC    bool   `json:"has_rc"`
	InPhase  bool   `json:"in_phase"`
	AccMinus bool   `json:"acc_minus"`
}

// FormatPayload creates the JSON payload for a rig event.
func FormatPayload(event rig.Event) ([]byte, error) {
	p := event.Profile
	payload := Payload{
		Rig: RigPayload{
			ID:        event.ID,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Profile: ProfilePayload{
				Model:    string(p.Model),
				HasPEK:   p.HasPEK,
				HasRH:    p.HasRH,
				HasRC:    p.HasRC,
				InPhase:  p.InPhase,
				AccMinus: p.AccMinus,
			},
			Config: event.Config,
			Pins:   event.Pins,
			Result: event.Result,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
