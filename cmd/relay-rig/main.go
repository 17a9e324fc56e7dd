// Command relay-rig drives the HVAC relay test rig: it powers the rig,
// publishes rig events to MQTT and serves a status page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/catalog"
	"github.com/sweeney/relay-rig/internal/config"
	"github.com/sweeney/relay-rig/internal/expander"
	"github.com/sweeney/relay-rig/internal/logging"
	"github.com/sweeney/relay-rig/internal/metrics"
	"github.com/sweeney/relay-rig/internal/mqtt"
	"github.com/sweeney/relay-rig/internal/rig"
	"github.com/sweeney/relay-rig/internal/sense"
	"github.com/sweeney/relay-rig/internal/status"
	"github.com/sweeney/relay-rig/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before RELAYRIG_* overrides")
	printState := flag.Bool("print-state", false, "Print the sensed relay states and exit")
	listConfigs := flag.Bool("list-configs", false, "List the configurations for the profile and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
	if err := logging.Setup(logrus.StandardLogger(), cfg.Logging, os.Stderr); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}

	if *listConfigs {
		if err := listCatalog(cfg.Profile); err != nil {
			logrus.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(cfg, *printState, logrus.StandardLogger()); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}

func listCatalog(p catalog.Profile) error {
	cat, err := catalog.Build(p)
	if err != nil {
		return err
	}
	for _, name := range cat.Names() {
		set, _ := cat.Lookup(name)
		fmt.Printf("%-40s %s\n", name, set)
	}
	for _, name := range cat.Omitted() {
		fmt.Printf("%-40s omitted\n", name)
	}
	return nil
}

func run(cfg *config.Config, printState bool, log *logrus.Logger) error {
	// Print state mode opens only the sense expander; opening an output
	// expander resets it and drops its relays.
	if printState {
		dev, err := expander.Open(uint8(cfg.I2C.Bus), uint8(cfg.I2C.Sense), expander.Input)
		if err != nil {
			return fmt.Errorf("open sense: %w", err)
		}
		defer dev.Close()
		return printRelayStates(os.Stdout, sense.New(dev, sense.WithLogger(log)))
	}

	hw, err := rig.OpenHardware(rig.HardwareConfig{
		Bus:      uint8(cfg.I2C.Bus),
		IC1:      uint8(cfg.I2C.IC1),
		IC2:      uint8(cfg.I2C.IC2),
		Sense:    uint8(cfg.I2C.Sense),
		GPIOChip: cfg.GPIO.Chip,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs: cfg.Heartbeat().Milliseconds(),
		PollMs:      cfg.SensePoll().Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		I2CBus:      cfg.I2C.Bus,
		GPIOChip:    cfg.GPIO.Chip,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var (
		publisher  mqtt.Publisher = discardPublisher{}
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Username:   cfg.MQTT.Username,
			Password:   cfg.MQTT.Password,
			BufferSize: cfg.MQTT.BufferSize,
		}, log)
		if err != nil {
			hw.Close()
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	r, err := rig.New(cfg.Profile, hw,
		rig.WithLogger(log),
		rig.WithNotifier(rig.Notifiers{tracker, mqtt.Notifier{Publisher: publisher}}),
		rig.WithMetrics(metrics.New(reg)),
		rig.WithSenseOptions(sense.WithIntervals(cfg.SensePoll(), cfg.SenseLog())),
	)
	if err != nil {
		hw.Close()
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.WithError(err).Warn("closing rig")
		}
	}()

	if err := r.Start(); err != nil {
		return fmt.Errorf("power rig: %w", err)
	}
	tracker.UpdateRig(r.Status())

	// Publish startup event with full status snapshot
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
	}

	log.WithFields(logrus.Fields{
		"profile":   cfg.Profile.String(),
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.Heartbeat(),
		"poll":      cfg.SensePoll(),
	}).Info("started")

	ticker := time.NewTicker(cfg.SensePoll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	return runLoop(r, publisher, mqttStatus, tracker, log, cfg.Heartbeat(), time.Now, ticker.C, sigCh)
}

func printRelayStates(w io.Writer, s *sense.Sensor) error {
	states, err := s.RelayStates()
	if err != nil {
		return fmt.Errorf("read sense: %w", err)
	}
	for _, wire := range sense.Monitored {
		fmt.Fprintf(w, "%s: %s\n", wire.Name, stateString(states[wire.Name]))
	}
	return nil
}

// rigController is the part of *rig.Rig the run loop drives.
type rigController interface {
	Status() (rig.Status, error)
	Reset() error
}

// runLoop refreshes the status tracker on every tick, sends heartbeats and
// handles signals. SIGHUP resets the rig to its default profile; any other
// signal publishes SHUTDOWN and returns.
func runLoop(r rigController, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log logrus.FieldLogger, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	refresh := func() {
		st, err := r.Status()
		if err != nil {
			log.WithError(err).Warn("rig status read failed")
		}
		tracker.UpdateRig(st, err)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				log.Info("received SIGHUP, resetting rig")
				if err := r.Reset(); err != nil {
					log.WithError(err).Error("reset failed")
				}
				refresh()
				continue
			}

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			log.WithField("signal", signalName).Info("shutting down")

			refresh()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.WithError(err).Warn("failed to publish shutdown event")
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			refresh()

			if heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.WithField("uptime", snap.Uptime().Truncate(time.Second)).Debug("heartbeat")

			hb := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hb); err != nil {
				log.WithError(err).Warn("heartbeat publish error")
			}
		}
	}
}

// discardPublisher stands in when no broker is configured.
type discardPublisher struct{}

func (discardPublisher) Publish(rig.Event) error              { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                         { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
