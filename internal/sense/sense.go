// Package sense samples the sense-module expander and waits for the rig's
// wires to reach an expected state.
package sense

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/expander"
)

const (
	// PollInterval is the time between samples while waiting.
	PollInterval = 2 * time.Second

	// LogInterval bounds how long the wait loop stays silent when nothing
	// changes.
	LogInterval = 10 * time.Second
)

// Sensor reads the sense expander. It is not safe for concurrent use.
type Sensor struct {
	dev      expander.Device
	poll     time.Duration
	logEvery time.Duration
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	log      logrus.FieldLogger

	last Mask
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sensor) { s.now = now }
}

// WithSleep replaces the context-aware poll sleep.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Sensor) { s.sleep = fn }
}

// WithIntervals overrides PollInterval and LogInterval. Zero keeps the default.
func WithIntervals(poll, logEvery time.Duration) Option {
	return func(s *Sensor) {
		if poll > 0 {
			s.poll = poll
		}
		if logEvery > 0 {
			s.logEvery = logEvery
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Sensor) { s.log = l }
}

// New creates a Sensor reading dev.
func New(dev expander.Device, opts ...Option) *Sensor {
	s := &Sensor{
		dev:      dev,
		poll:     PollInterval,
		logEvery: LogInterval,
		now:      time.Now,
		sleep:    sleepCtx,
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("component", "sense")
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Read samples both ports.
func (s *Sensor) Read() (Mask, error) {
	lo, err := s.dev.ReadPort(expander.PortA)
	if err != nil {
		return 0, fmt.Errorf("read sense %s: %w", expander.PortA, err)
	}
	hi, err := s.dev.ReadPort(expander.PortB)
	if err != nil {
		return 0, fmt.Errorf("read sense %s: %w", expander.PortB, err)
	}
	m := Mask(lo) | Mask(hi)<<8
	s.last = m
	return m, nil
}

// Last returns the most recent sample without touching hardware.
func (s *Sensor) Last() Mask { return s.last }

// RelayStates takes one sample and reports the monitored wires.
func (s *Sensor) RelayStates() (map[string]bool, error) {
	m, err := s.Read()
	if err != nil {
		return nil, err
	}
	return m.States(), nil
}

// WaitForEvent polls until the inputs equal expected or timeout elapses.
// A zero timeout takes a single sample. It returns ctx.Err() if ctx ends
// first.
func (s *Sensor) WaitForEvent(ctx context.Context, expected Mask, timeout time.Duration) (bool, error) {
	s.log.WithField("expected", expected.Summary()).Info("waiting for state")

	start := s.now()
	var lastPrint time.Duration
	last := s.last
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		cur, err := s.Read()
		if err != nil {
			return false, err
		}
		elapsed := s.now().Sub(start)

		if cur != last {
			s.log.Info("RELAY STATE CHANGE")
			lastPrint = elapsed
			last = cur
			s.logStates(cur, expected, elapsed, timeout)
		} else if elapsed-lastPrint > s.logEvery {
			lastPrint = elapsed
			s.logStates(cur, expected, elapsed, timeout)
		}

		if cur == expected {
			s.log.WithField("elapsed", elapsed.Round(10*time.Millisecond).String()).Info("event matched")
			return true, nil
		}
		if elapsed >= timeout {
			return false, nil
		}
		if err := s.sleep(ctx, s.poll); err != nil {
			return false, err
		}
	}
}

func (s *Sensor) logStates(cur, expected Mask, elapsed, timeout time.Duration) {
	s.log.WithFields(logrus.Fields{
		"current":  cur.Summary(),
		"expected": expected.Summary(),
		"elapsed":  elapsed.Round(time.Second).String(),
		"timeout":  timeout.String(),
	}).Info("relay states")
}
