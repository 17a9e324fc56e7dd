// Package status provides a thread-safe status tracker for the relay-rig daemon.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/relay-rig/internal/rig"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	PollMs      int64
	Broker      string
	HTTPAddr    string
	I2CBus      int
	GPIOChip    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Rig           rig.Status
	RigError      string
	Counts        map[rig.EventType]int
	LastEvent     *rig.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. It implements
// rig.Notifier to count events.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Counts:    make(map[rig.EventType]int),
		},
		now: time.Now,
	}
}

// UpdateRig stores the latest rig status. A non-nil err is shown alongside.
// Called from runLoop on every tick.
func (t *Tracker) UpdateRig(st rig.Status, err error) {
	t.mu.Lock()
	t.snap.Rig = st
	t.snap.RigError = ""
	if err != nil {
		t.snap.RigError = err.Error()
	}
	t.mu.Unlock()
}

// Notify records a rig event.
func (t *Tracker) Notify(ev rig.Event) error {
	t.mu.Lock()
	t.snap.Counts[ev.Type]++
	t.snap.LastEvent = &ev
	switch ev.Type {
	case rig.EventConfigured:
		t.snap.Rig.Configured = ev.Config
		t.snap.Rig.ActivePins = ev.Pins
	case rig.EventCleaned, rig.EventRejected, rig.EventFailed, rig.EventReprofiled:
		t.snap.Rig.Configured = ""
		t.snap.Rig.ActivePins = nil
	}
	t.snap.Rig.Profile = ev.Profile
	t.mu.Unlock()
	return nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts = make(map[rig.EventType]int, len(t.snap.Counts))
	for k, v := range t.snap.Counts {
		s.Counts[k] = v
	}
	if t.snap.LastEvent != nil {
		ev := *t.snap.LastEvent
		s.LastEvent = &ev
	}
	s.Rig.ActivePins = append([]string(nil), t.snap.Rig.ActivePins...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
