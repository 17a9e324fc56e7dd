package status

import (
	"encoding/json"
	"sort"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Rig           RigJSON        `json:"rig"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        map[string]int `json:"event_counts"`
	LastEvent     *EventJSON     `json:"last_event,omitempty"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// RigJSON is the JSON representation of the rig state.
type RigJSON struct {
	Model      string          `json:"model"`
	HasPEK     bool            `json:"has_pek"`
	HasRH      bool            `json:"has_rh"`
	HasRC      bool            `json:"has_rc"`
	InPhase    bool            `json:"in_phase"`
	AccMinus   bool            `json:"acc_minus"`
	Configured string          `json:"configured"`
	ActivePins []string        `json:"active_pins"`
	Sense      string          `json:"sense"`
	Wires      map[string]bool `json:"wires"`
	DUTPresent bool            `json:"dut_present"`
	Aquastat   AquastatJSON    `json:"aquastat"`
	Error      string          `json:"error,omitempty"`
}

// AquastatJSON reports the aquastat relay bits.
type AquastatJSON struct {
	Mode  string `json:"mode"`
	State string `json:"state"`
}

// EventJSON is the JSON representation of the last rig event.
type EventJSON struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Config    string `json:"config,omitempty"`
	Result    string `json:"result,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	PollMs      int64  `json:"poll_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	I2CBus      int    `json:"i2c_bus"`
	GPIOChip    string `json:"gpio_chip,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Rig.Profile
	active := snap.Rig.ActivePins
	if active == nil {
		active = []string{}
	}

	counts := make(map[string]int, len(snap.Counts))
	for k, v := range snap.Counts {
		counts[string(k)] = v
	}

	inner := StatusInner{
		Rig: RigJSON{
			Model:      string(p.Model),
			HasPEK:     p.HasPEK,
			HasRH:      p.HasRH,
			HasRC:      p.HasRC,
			InPhase:    p.InPhase,
			AccMinus:   p.AccMinus,
			Configured: snap.Rig.Configured,
			ActivePins: active,
			Sense:      snap.Rig.Sense.String(),
			Wires:      snap.Rig.Sense.States(),
			DUTPresent: snap.Rig.DUTPresent,
			Aquastat: AquastatJSON{
				Mode:  snap.Rig.AquastatMode.String(),
				State: snap.Rig.AquastatState.String(),
			},
			Error:      snap.RigError,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        counts,
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			PollMs:      snap.Config.PollMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			I2CBus:      snap.Config.I2CBus,
			GPIOChip:    snap.Config.GPIOChip,
		},
	}
	if ev := snap.LastEvent; ev != nil {
		inner.LastEvent = &EventJSON{
			ID:        ev.ID,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Type:      string(ev.Type),
			Config:    ev.Config,
			Result:    ev.Result,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// SortedCounts returns the event types with non-zero counts in name order.
func SortedCounts(snap Snapshot) []string {
	keys := make([]string, 0, len(snap.Counts))
	for k, v := range snap.Counts {
		if v > 0 {
			keys = append(keys, string(k))
		}
	}
	sort.Strings(keys)
	return keys
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
