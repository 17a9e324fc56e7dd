package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/relay-rig/internal/catalog"
	"github.com/sweeney/relay-rig/internal/expander"
	"github.com/sweeney/relay-rig/internal/mqtt"
	"github.com/sweeney/relay-rig/internal/rig"
	"github.com/sweeney/relay-rig/internal/sense"
	"github.com/sweeney/relay-rig/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want connected", info.Status)
	}
	if info.Type != "" {
		t.Errorf("Type: got %q, want empty", info.Type)
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// fakeRig returns a fixed status and counts calls.
type fakeRig struct {
	mu        sync.Mutex
	st        rig.Status
	statusErr error
	resetErr  error
	reads     int
	resets    int
}

func (f *fakeRig) Status() (rig.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.st, f.statusErr
}

func (f *fakeRig) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.st.Configured = catalog.ConfigPower
	return f.resetErr
}

func newFakeRig() *fakeRig {
	return &fakeRig{st: rig.Status{
		Profile:    catalog.DefaultProfile(),
		Configured: catalog.ConfigFan,
		ActivePins: []string{"S3_RC", "S6_G_NO_PEK"},
		Sense:      sense.InG,
	}}
}

func newTestTracker() *status.Tracker {
	return status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{HeartbeatMs: 900000, PollMs: 2000})
}

// runRunLoop drives runLoop with nTicks ticks followed by the given signals,
// the last of which must stop the loop.
func runRunLoop(t *testing.T, r rigController, pub *mqtt.FakePublisher, tracker *status.Tracker, heartbeat time.Duration, clock func() time.Time, nTicks int, signals ...os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal)
	logger, _ := test.NewNullLogger()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r, pub, pub, tracker, logger, heartbeat, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	for _, s := range signals {
		sig <- s
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func systemEvents(pub *mqtt.FakePublisher, name string) []mqtt.SystemEvent {
	_, sys := pub.Snapshot()
	var out []mqtt.SystemEvent
	for _, se := range sys {
		if se.Event == name {
			out = append(out, se)
		}
	}
	return out
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	r := newFakeRig()
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := newTestTracker()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 2*time.Second)

	if err := runRunLoop(t, r, pub, tracker, 0, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.Rig.Configured != catalog.ConfigFan {
		t.Errorf("Configured: got %q, want %s", snap.Rig.Configured, catalog.ConfigFan)
	}
	if snap.Rig.Sense != sense.InG {
		t.Errorf("Sense: got %v, want %v", snap.Rig.Sense, sense.InG)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	// three ticks plus the refresh before SHUTDOWN
	if r.reads != 4 {
		t.Errorf("status reads: got %d, want 4", r.reads)
	}
}

func TestRunLoopStatusError(t *testing.T) {
	r := newFakeRig()
	r.statusErr = errors.New("i2c: remote I/O error")
	pub := mqtt.NewFakePublisher()
	tracker := newTestTracker()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 2*time.Second)

	if err := runRunLoop(t, r, pub, tracker, 0, clock, 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if got := tracker.Snapshot().RigError; got != "i2c: remote I/O error" {
		t.Errorf("RigError: got %q", got)
	}
	if len(systemEvents(pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN despite status errors")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// clock calls: t0 (start), then one per tick at +5m, +10m, +15m, +20m,
	// then one for SHUTDOWN. A 15-minute interval fires once, at +15m.
	r := newFakeRig()
	pub := mqtt.NewFakePublisher()
	tracker := newTestTracker()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	if err := runRunLoop(t, r, pub, tracker, 15*time.Minute, clock, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := systemEvents(pub, "HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 HEARTBEAT event, got %d", len(hbs))
	}
	hb := hbs[0]
	if want := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC); !hb.Timestamp.Equal(want) {
		t.Errorf("heartbeat timestamp: got %v, want %v", hb.Timestamp, want)
	}
	if hb.Retained {
		t.Error("HEARTBEAT should not be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(hb.RawPayload, &parsed); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("payload event: got %q", parsed.Status.Event)
	}
	if parsed.Status.Rig.Configured != catalog.ConfigFan {
		t.Errorf("payload configured: got %q", parsed.Status.Rig.Configured)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)

	if err := runRunLoop(t, newFakeRig(), pub, newTestTracker(), 0, clock, 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if n := len(systemEvents(pub, "HEARTBEAT")); n != 0 {
		t.Errorf("expected no heartbeats, got %d", n)
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.42")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "associated")
	t.Setenv(envNetworkWifiSSID, "HomeNet")

	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	if err := runRunLoop(t, newFakeRig(), pub, newTestTracker(), 15*time.Minute, clock, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := systemEvents(pub, "HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 HEARTBEAT event, got %d", len(hbs))
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(hbs[0].RawPayload, &parsed); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if parsed.Status.Network == nil {
		t.Fatal("HEARTBEAT payload missing network info")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "HomeNet" {
		t.Errorf("Network.SSID: got %q", parsed.Status.Network.SSID)
	}
}

func TestRunLoopHeartbeatPublishError(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker unavailable")
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	if err := runRunLoop(t, newFakeRig(), pub, newTestTracker(), 10*time.Minute, clock, 6, syscall.SIGTERM); err != nil {
		t.Fatalf("publish failures should not stop the loop: %v", err)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	if err := runRunLoop(t, newFakeRig(), pub, newTestTracker(), 0, clock, 2, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	_, sys := pub.Snapshot()
	if len(sys) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(sys))
	}
	se := sys[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	if err := runRunLoop(t, newFakeRig(), pub, newTestTracker(), 0, clock, 0, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	shutdowns := systemEvents(pub, "SHUTDOWN")
	if len(shutdowns) != 1 {
		t.Fatalf("expected 1 SHUTDOWN, got %d", len(shutdowns))
	}
	se := shutdowns[0]
	if se.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", se.Reason)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(se.RawPayload, &parsed); err != nil {
		t.Fatalf("shutdown payload: %v", err)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("payload reason: got %q", parsed.Status.Reason)
	}
}

func TestRunLoopSIGHUPResets(t *testing.T) {
	r := newFakeRig()
	pub := mqtt.NewFakePublisher()
	tracker := newTestTracker()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)

	if err := runRunLoop(t, r, pub, tracker, 0, clock, 1, syscall.SIGHUP, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if r.resets != 1 {
		t.Errorf("resets: got %d, want 1", r.resets)
	}
	if got := tracker.Snapshot().Rig.Configured; got != catalog.ConfigPower {
		t.Errorf("Configured after reset: got %q, want %s", got, catalog.ConfigPower)
	}
	if n := len(systemEvents(pub, "SHUTDOWN")); n != 1 {
		t.Errorf("SIGHUP should not shut down; got %d SHUTDOWN events", n)
	}
}

func TestRunLoopSIGHUPResetError(t *testing.T) {
	r := newFakeRig()
	r.resetErr = errors.New("bus error")
	pub := mqtt.NewFakePublisher()

	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	if err := runRunLoop(t, r, pub, newTestTracker(), 0, clock, 0, syscall.SIGHUP, syscall.SIGINT); err != nil {
		t.Fatalf("reset failure should not stop the loop: %v", err)
	}
	if r.resets != 1 {
		t.Errorf("resets: got %d, want 1", r.resets)
	}
}

func TestRunLoopWithRig(t *testing.T) {
	j := &expander.Journal{}
	senseDev := expander.NewFake(expander.AddrSense, nil)
	senseDev.Set(expander.PortB, byte(sense.InW1>>8))
	logger, _ := test.NewNullLogger()

	pub := mqtt.NewFakePublisher()
	tracker := newTestTracker()
	r, err := rig.New(catalog.DefaultProfile(), rig.Hardware{
		IC1:   expander.NewFake(expander.AddrIC1, j),
		IC2:   expander.NewFake(expander.AddrIC2, j),
		Sense: senseDev,
	},
		rig.WithLogger(logger),
		rig.WithSleep(func(time.Duration) {}),
		rig.WithNotifier(rig.Notifiers{tracker, mqtt.Notifier{Publisher: pub}}),
	)
	if err != nil {
		t.Fatalf("rig.New: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 2*time.Second)
	if err := runRunLoop(t, r, pub, tracker, 0, clock, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.Rig.Configured != catalog.ConfigPower {
		t.Errorf("Configured: got %q, want %s", snap.Rig.Configured, catalog.ConfigPower)
	}
	if snap.Rig.Sense != sense.InW1 {
		t.Errorf("Sense: got %v, want W1", snap.Rig.Sense)
	}
	if snap.Counts[rig.EventConfigured] != 1 {
		t.Errorf("CONFIGURED count: got %d, want 1", snap.Counts[rig.EventConfigured])
	}

	events, _ := pub.Snapshot()
	if len(events) != 1 || events[0].Type != rig.EventConfigured {
		t.Errorf("published events: got %+v", events)
	}
}

func TestDiscardPublisher(t *testing.T) {
	var p mqtt.Publisher = discardPublisher{}
	if err := p.Publish(rig.Event{}); err != nil {
		t.Error(err)
	}
	if err := p.PublishSystem(mqtt.SystemEvent{}); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestPrintRelayStates(t *testing.T) {
	dev := expander.NewFake(expander.AddrSense, nil)
	dev.Set(expander.PortB, byte((sense.InW1|sense.InACC)>>8))

	var buf bytes.Buffer
	if err := printRelayStates(&buf, sense.New(dev)); err != nil {
		t.Fatalf("printRelayStates: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(sense.Monitored) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(sense.Monitored), buf.String())
	}
	for i, w := range sense.Monitored {
		want := w.Name + ": OFF"
		if w.Name == "W1" || w.Name == "ACC" {
			want = w.Name + ": ON"
		}
		if lines[i] != want {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want)
		}
	}
	if n := len(dev.Journal.Writes()); n != 0 {
		t.Errorf("print state wrote %d times, want 0", n)
	}
}

func TestPrintRelayStatesReadError(t *testing.T) {
	dev := expander.NewFake(expander.AddrSense, nil)
	dev.ReadError = errors.New("nack")

	var buf bytes.Buffer
	err := printRelayStates(&buf, sense.New(dev))
	if err == nil || !strings.Contains(err.Error(), "read sense") {
		t.Fatalf("got %v, want read sense error", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q on error", buf.String())
	}
}
