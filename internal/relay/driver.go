// Package relay applies pin configurations to the switch-module output
// expanders using a two-phase write: signal pins first, power pins last.
// Teardown runs in reverse. A Driver is not safe for concurrent use.
package relay

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/expander"
	"github.com/sweeney/relay-rig/internal/pins"
)

// SettleDelay is the time relays need to finish switching between phases.
const SettleDelay = time.Second

// State is the driver's configuration state.
type State int

const (
	Unconfigured State = iota
	Configured
)

func (s State) String() string {
	if s == Configured {
		return "configured"
	}
	return "unconfigured"
}

// Driver owns the two output expanders.
type Driver struct {
	ic1, ic2 expander.Device
	image    Image
	state    State
	applied  pins.Set

	sleep func(time.Duration)
	log   logrus.FieldLogger
}

// Option configures a Driver.
type Option func(*Driver)

// WithSleep replaces time.Sleep for settle delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(d *Driver) { d.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = l }
}

// NewDriver creates a driver for IC1 and IC2. No hardware is touched.
func NewDriver(ic1, ic2 expander.Device, opts ...Option) *Driver {
	d := &Driver{
		ic1:   ic1,
		ic2:   ic2,
		sleep: time.Sleep,
		log:   logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.WithField("component", "relay")
	return d
}

func (d *Driver) port(b pins.Bank) (expander.Device, expander.Port) {
	dev := d.ic1
	if b.Chip() == 1 {
		dev = d.ic2
	}
	if b.PortB() {
		return dev, expander.PortB
	}
	return dev, expander.PortA
}

// ReadBank reads one output bank from hardware.
func (d *Driver) ReadBank(b pins.Bank) (byte, error) {
	dev, p := d.port(b)
	v, err := dev.ReadPort(p)
	if err != nil {
		return 0, &BusError{Op: "read", Bank: b, Err: err}
	}
	return v, nil
}

// WriteBank writes one output bank and records it in the image.
func (d *Driver) WriteBank(b pins.Bank, v byte) error {
	dev, p := d.port(b)
	if err := dev.WritePort(p, v); err != nil {
		return &BusError{Op: "write", Bank: b, Err: err}
	}
	d.image[b] = v
	d.log.WithFields(logrus.Fields{"bank": b.String(), "value": fmt.Sprintf("%08b", v)}).Debug("bank written")
	return nil
}

// writeImage writes all four banks in order and stops at the first error.
func (d *Driver) writeImage(img Image) error {
	for _, b := range pins.Banks {
		if err := d.WriteBank(b, img[b]); err != nil {
			return err
		}
	}
	return nil
}

// writeImageBestEffort writes every bank, logging failures.
func (d *Driver) writeImageBestEffort(img Image) {
	for _, b := range pins.Banks {
		if err := d.WriteBank(b, img[b]); err != nil {
			d.log.WithError(err).Warn("cleanup write failed")
		}
	}
}

func (d *Driver) readImage() (Image, error) {
	var img Image
	for _, b := range pins.Banks {
		v, err := d.ReadBank(b)
		if err != nil {
			return img, err
		}
		img[b] = v
	}
	return img, nil
}

// ReadActivePins reads every bank and returns the energized pins.
func (d *Driver) ReadActivePins() (pins.Set, error) {
	img, err := d.readImage()
	if err != nil {
		return nil, err
	}
	return img.Pins(), nil
}

// Apply de-energizes the rig and then energizes cfg. Pins outside
// pins.MainPower are written first; power pins follow after SettleDelay.
//
// A configuration that violates a mutual-exclusion rule returns a
// *ConflictingPinsError. None of its bits are written but the rig is still
// cleaned up, so it is left de-energized.
func (d *Driver) Apply(cfg pins.Set) error {
	cfg = pins.NewSet(cfg...)
	if unknown := cfg.Unknown(); len(unknown) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownPin, unknown)
	}
	if conflicts := pins.Conflicts(cfg); len(conflicts) > 0 {
		err := &ConflictingPinsError{Pins: cfg, Conflicts: conflicts}
		d.log.WithError(err).Error("configuration rejected")
		d.Cleanup()
		return err
	}

	d.Cleanup()
	d.sleep(SettleDelay)

	power := cfg.Tagged(pins.TagPower)
	img := Compose(Image{}, cfg.Without(power), nil)
	if err := d.writeImage(img); err != nil {
		return fmt.Errorf("apply signal pins: %w", err)
	}
	d.sleep(SettleDelay)

	img = Compose(img, power, nil)
	if err := d.writeImage(img); err != nil {
		return fmt.Errorf("apply power pins: %w", err)
	}
	d.state = Configured
	d.applied = cfg

	active, err := d.ReadActivePins()
	if err != nil {
		d.log.WithError(err).Warn("readback after apply failed")
		return nil
	}
	entry := d.log.WithFields(logrus.Fields{"pins": active.String(), "image": img.String()})
	if !active.Equal(cfg) {
		entry.WithField("requested", cfg.String()).Warn("readback differs from configuration")
		return nil
	}
	entry.Info("configuration applied")
	return nil
}

// Cleanup removes power and then every other pin. It is safe to call at any
// time and never fails; bus errors are logged and the sequence continues.
func (d *Driver) Cleanup() {
	d.sleep(SettleDelay)

	img, err := d.readImage()
	if err != nil {
		d.log.WithError(err).Warn("cleanup readback failed, using last written image")
		img = d.image
	} else {
		img = img.Or(d.image)
	}

	if !img.Empty() {
		d.log.WithField("pins", img.Pins().String()).Info("de-energizing")
		d.writeImageBestEffort(Compose(img, nil, pins.MainPower))
		d.sleep(SettleDelay)
		d.writeImageBestEffort(Image{})
		d.sleep(SettleDelay)
	}

	d.state = Unconfigured
	d.applied = nil
}

// State returns the configuration state.
func (d *Driver) State() State { return d.state }

// Applied returns the last applied configuration, or nil when unconfigured.
func (d *Driver) Applied() pins.Set {
	return append(pins.Set(nil), d.applied...)
}

// Image returns the last written bank values.
func (d *Driver) Image() Image { return d.image }
