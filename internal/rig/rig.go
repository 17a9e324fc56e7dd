// Package rig assembles the relay driver, configuration catalog, aquastat
// and sensor for one physical test rig and serializes every call into them.
package rig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/aquastat"
	"github.com/sweeney/relay-rig/internal/catalog"
	"github.com/sweeney/relay-rig/internal/gpio"
	"github.com/sweeney/relay-rig/internal/metrics"
	"github.com/sweeney/relay-rig/internal/pins"
	"github.com/sweeney/relay-rig/internal/relay"
	"github.com/sweeney/relay-rig/internal/sense"
)

// ErrUnknownConfig is returned by Configure for names missing from the catalog.
var ErrUnknownConfig = errors.New("unknown configuration")

// CustomConfig is the configured name reported after ApplyPins.
const CustomConfig = "CUSTOM"

// Rig owns the hardware of one test rig.
type Rig struct {
	mu sync.Mutex

	hw         Hardware
	profile    catalog.Profile
	catalog    *catalog.Catalog
	driver     *relay.Driver
	aquastat   *aquastat.Subsystem
	sensor     *sense.Sensor
	configured string

	notifier  Notifier
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	sleep     func(time.Duration)
	now       func() time.Time
	senseOpts []sense.Option
}

// Option configures a Rig.
type Option func(*Rig)

// WithLogger sets the logger passed to every component.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Rig) { r.log = l }
}

// WithSleep replaces time.Sleep for relay and aquastat settle delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *Rig) { r.sleep = fn }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Rig) { r.now = now }
}

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(r *Rig) { r.notifier = n }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rig) { r.metrics = m }
}

// WithSenseOptions passes options through to the sensor.
func WithSenseOptions(opts ...sense.Option) Option {
	return func(r *Rig) { r.senseOpts = append(r.senseOpts, opts...) }
}

// New validates profile and wires the components to hw. No hardware is
// touched; call Start to energize the default configuration.
func New(profile catalog.Profile, hw Hardware, opts ...Option) (*Rig, error) {
	cat, err := catalog.Build(profile)
	if err != nil {
		return nil, err
	}

	r := &Rig{
		hw:      hw,
		profile: profile,
		catalog: cat,
		log:     logrus.StandardLogger(),
		sleep:   time.Sleep,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	r.driver = relay.NewDriver(hw.IC1, hw.IC2, relay.WithSleep(r.sleep), relay.WithLogger(r.log))
	r.aquastat = r.newAquastat(profile)
	r.sensor = sense.New(hw.Sense, append([]sense.Option{sense.WithLogger(r.log)}, r.senseOpts...)...)
	r.log = r.log.WithField("component", "rig")
	return r, nil
}

func (r *Rig) newAquastat(p catalog.Profile) *aquastat.Subsystem {
	return aquastat.New(r.driver, p, aquastat.WithSleep(r.sleep), aquastat.WithLogger(r.log))
}

// Driver returns the relay driver. Callers using it directly bypass the
// Rig's serialization.
func (r *Rig) Driver() *relay.Driver { return r.driver }

// Catalog returns the catalog for the current profile.
func (r *Rig) Catalog() *catalog.Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog
}

// Aquastat returns the aquastat subsystem for the current profile.
func (r *Rig) Aquastat() *aquastat.Subsystem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aquastat
}

// Sensor returns the event sensor.
func (r *Rig) Sensor() *sense.Sensor { return r.sensor }

// Profile returns the current profile.
func (r *Rig) Profile() catalog.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Configured returns the name of the applied configuration, CustomConfig,
// or "" when the rig is de-energized.
func (r *Rig) Configured() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configured
}

// Start applies CONFIG_POWER so the thermostat under test is powered.
func (r *Rig) Start() error {
	return r.Configure(catalog.ConfigPower)
}

// Configure applies the named configuration from the current catalog.
func (r *Rig) Configure(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configureLocked(name)
}

func (r *Rig) configureLocked(name string) error {
	cfg, ok := r.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConfig, name)
	}
	return r.applyLocked(name, cfg)
}

// ApplyPins applies an ad-hoc pin set.
func (r *Rig) ApplyPins(cfg pins.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(CustomConfig, cfg)
}

func (r *Rig) applyLocked(name string, cfg pins.Set) error {
	start := r.now()
	entry := r.log.WithField("config", name)
	entry.Info("applying configuration")

	err := r.driver.Apply(cfg)
	elapsed := r.now().Sub(start)

	var conflict *relay.ConflictingPinsError
	switch {
	case err == nil:
		r.configured = name
		r.metrics.ObserveApply("ok", elapsed)
		r.metrics.SetActivePins(len(cfg))
		r.emit(EventConfigured, name, cfg.Strings(), "ok")
		return nil
	case errors.As(err, &conflict):
		r.configured = ""
		r.metrics.ObserveApply("conflict", elapsed)
		r.metrics.SetActivePins(0)
		r.emit(EventRejected, name, cfg.Strings(), err.Error())
		return err
	case errors.Is(err, relay.ErrBus):
		// Partial writes may have energized something.
		entry.WithError(err).Error("apply failed, de-energizing")
		r.driver.Cleanup()
		r.configured = ""
		r.metrics.IncBusError()
		r.metrics.ObserveApply("bus_error", elapsed)
		r.metrics.SetActivePins(0)
		r.emit(EventFailed, name, cfg.Strings(), err.Error())
		return err
	default:
		r.metrics.ObserveApply("invalid", elapsed)
		return err
	}
}

// Cleanup de-energizes the rig.
func (r *Rig) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()
}

func (r *Rig) cleanupLocked() {
	r.driver.Cleanup()
	r.configured = ""
	r.metrics.IncCleanup()
	r.metrics.SetActivePins(0)
	r.emit(EventCleaned, "", nil, "ok")
}

// Reprofile de-energizes the rig and switches to profile. An invalid
// profile is rejected before anything changes.
func (r *Rig) Reprofile(p catalog.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reprofileLocked(p)
}

func (r *Rig) reprofileLocked(p catalog.Profile) error {
	cat, err := catalog.Build(p)
	if err != nil {
		return err
	}
	r.cleanupLocked()
	r.profile = p
	r.catalog = cat
	r.aquastat = r.newAquastat(p)
	r.log.WithField("profile", p.String()).Info("profile changed")
	r.emit(EventReprofiled, "", nil, p.String())
	return nil
}

// Reset returns the rig to its boot state: default profile with
// CONFIG_POWER applied.
func (r *Rig) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reprofileLocked(catalog.DefaultProfile()); err != nil {
		return err
	}
	return r.configureLocked(catalog.ConfigPower)
}

// Close de-energizes the rig, lowers the EXECUTE line and releases the
// hardware.
func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.driver.Cleanup()
	r.configured = ""

	var errs []error
	if r.hw.Lines != nil {
		if err := gpio.Release(r.hw.Lines); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.hw.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ActivePins reads the energized pins from hardware.
func (r *Rig) ActivePins() (pins.Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.driver.ReadActivePins()
}

// RelayStates samples the sense inputs once.
func (r *Rig) RelayStates() (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sensor.RelayStates()
}

// WaitForEvent blocks until the sense inputs equal expected or timeout
// elapses. Other calls wait for it to finish.
func (r *Rig) WaitForEvent(ctx context.Context, expected sense.Mask, timeout time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.sensor.WaitForEvent(ctx, expected, timeout)
	result := "timeout"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "matched"
	}
	r.metrics.ObserveSense(result)
	r.emit(EventSense, "", []string{expected.String()}, result)
	return ok, err
}

// AquastatOp names an aquastat operation.
type AquastatOp string

const (
	AquastatStartMode AquastatOp = "start_mode"
	AquastatEndMode   AquastatOp = "end_mode"
	AquastatOpen      AquastatOp = "open"
	AquastatClose     AquastatOp = "close"
)

// DoAquastat runs one aquastat operation.
func (r *Rig) DoAquastat(op AquastatOp) (aquastat.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fn func() (aquastat.Outcome, error)
	switch op {
	case AquastatStartMode:
		fn = r.aquastat.StartMode
	case AquastatEndMode:
		fn = r.aquastat.EndMode
	case AquastatOpen:
		fn = r.aquastat.Open
	case AquastatClose:
		fn = r.aquastat.Close
	default:
		return aquastat.PreconditionFailed, fmt.Errorf("unknown aquastat operation %q", op)
	}

	out, err := fn()
	if errors.Is(err, relay.ErrBus) {
		r.metrics.IncBusError()
	}
	r.metrics.ObserveAquastat(string(op), out.String())
	result := out.String()
	if err != nil {
		result = err.Error()
	}
	r.emit(EventAquastat, string(op), nil, result)
	return out, err
}

// DUTPresent reports the device-under-test detect line. Without control
// lines it reports false.
func (r *Rig) DUTPresent() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hw.Lines == nil {
		return false, nil
	}
	return gpio.DUTPresent(r.hw.Lines)
}

// Status is a point-in-time view of the rig read from hardware.
type Status struct {
	Profile    catalog.Profile
	Configured string
	ActivePins []string
	Sense      sense.Mask
	DUTPresent bool

	AquastatMode  aquastat.Mode
	AquastatState aquastat.State
}

// Status reads the output banks, the aquastat bits, the sense inputs and
// the detect line.
// Fields that could not be read keep their zero value and the read errors
// are joined.
func (r *Rig) Status() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{Profile: r.profile, Configured: r.configured}
	var errs []error

	active, err := r.driver.ReadActivePins()
	if err != nil {
		errs = append(errs, err)
	} else {
		st.ActivePins = active.Strings()
	}
	if st.Sense, err = r.sensor.Read(); err != nil {
		errs = append(errs, err)
	}
	if st.AquastatMode, err = r.aquastat.Mode(); err != nil {
		errs = append(errs, err)
	}
	if st.AquastatState, err = r.aquastat.State(); err != nil {
		errs = append(errs, err)
	}
	if r.hw.Lines != nil {
		if st.DUTPresent, err = gpio.DUTPresent(r.hw.Lines); err != nil {
			errs = append(errs, err)
		}
	}
	return st, errors.Join(errs...)
}
