// Package aquastat emulates a two-wire aquastat on the switch module: one
// relay connects it (mode) and one relay toggles its contact (state).
// Every query reads the hardware; nothing is cached.
package aquastat

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/catalog"
	"github.com/sweeney/relay-rig/internal/pins"
)

// ToggleDelay is the settle time before disconnecting or closing the contact.
const ToggleDelay = 10 * time.Millisecond

// Outcome is the result of an aquastat operation. Operations that fail
// with a bus error report HardwareMismatch alongside the error.
type Outcome int

const (
	Success Outcome = iota
	PreconditionFailed
	PreconditionRequired
	HardwareMismatch
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case PreconditionFailed:
		return "precondition failed"
	case PreconditionRequired:
		return "precondition required"
	case HardwareMismatch:
		return "hardware mismatch"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Mode is whether the aquastat is connected.
type Mode int

const (
	Off Mode = iota
	On
)

func (m Mode) String() string {
	if m == On {
		return "on"
	}
	return "off"
}

// State is the aquastat contact position.
type State int

const (
	Open State = iota
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}
	return "open"
}

// Bus reads and writes whole output banks. *relay.Driver implements it.
type Bus interface {
	ReadBank(b pins.Bank) (byte, error)
	WriteBank(b pins.Bank, v byte) error
}

// restricted models cannot host an aquastat.
var restricted = map[catalog.Model]bool{
	catalog.Athena:      true,
	catalog.Artemis:     true,
	catalog.AttisRetail: true,
	catalog.AttisPro:    true,
}

var (
	modeInfo, _  = pins.Lookup(pins.S22Aqua)
	stateInfo, _ = pins.Lookup(pins.S23Toggle)
)

// Subsystem drives the aquastat relays for one profile.
type Subsystem struct {
	bus     Bus
	profile catalog.Profile
	sleep   func(time.Duration)
	log     logrus.FieldLogger
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithSleep replaces time.Sleep for the toggle delay.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Subsystem) { s.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Subsystem) { s.log = l }
}

// New creates a Subsystem on bus for profile.
func New(bus Bus, profile catalog.Profile, opts ...Option) *Subsystem {
	s := &Subsystem{
		bus:     bus,
		profile: profile,
		sleep:   time.Sleep,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("component", "aquastat")
	return s
}

func (s *Subsystem) read() (byte, error) {
	v, err := s.bus.ReadBank(modeInfo.Bank)
	if err != nil {
		return 0, fmt.Errorf("read aquastat bank: %w", err)
	}
	return v, nil
}

func (s *Subsystem) write(v byte) error {
	if err := s.bus.WriteBank(modeInfo.Bank, v); err != nil {
		return fmt.Errorf("write aquastat bank: %w", err)
	}
	return nil
}

// Mode reads the connect relay.
func (s *Subsystem) Mode() (Mode, error) {
	v, err := s.read()
	if err != nil {
		return Off, err
	}
	if v&modeInfo.Mask != 0 {
		return On, nil
	}
	return Off, nil
}

// State reads the toggle relay.
func (s *Subsystem) State() (State, error) {
	v, err := s.read()
	if err != nil {
		return Open, err
	}
	if v&stateInfo.Mask != 0 {
		return Closed, nil
	}
	return Open, nil
}

// StartMode connects the aquastat. Profiles with a PEK or RH wiring and
// restricted models fail with PreconditionFailed.
func (s *Subsystem) StartMode() (Outcome, error) {
	if s.profile.HasPEK || s.profile.HasRH || restricted[s.profile.Model] {
		s.log.WithField("profile", s.profile.String()).Warn("aquastat not supported for profile")
		return PreconditionFailed, nil
	}
	mode, err := s.Mode()
	if err != nil {
		return HardwareMismatch, err
	}
	if mode == On {
		return Success, nil
	}

	v, err := s.read()
	if err != nil {
		return HardwareMismatch, err
	}
	if err := s.write(v | modeInfo.Mask); err != nil {
		return HardwareMismatch, err
	}
	return s.verify("start mode", On, nil)
}

// EndMode disconnects the aquastat and opens its contact.
func (s *Subsystem) EndMode() (Outcome, error) {
	mode, err := s.Mode()
	if err != nil {
		return HardwareMismatch, err
	}
	if mode == Off {
		return Success, nil
	}

	v, err := s.read()
	if err != nil {
		return HardwareMismatch, err
	}
	s.sleep(ToggleDelay)
	if err := s.write(v &^ (modeInfo.Mask | stateInfo.Mask)); err != nil {
		return HardwareMismatch, err
	}
	open := Open
	return s.verify("end mode", Off, &open)
}

// Open opens the contact. Mode must be On unless the model is attisPro.
func (s *Subsystem) Open() (Outcome, error) {
	return s.toggle(Open)
}

// Close closes the contact. Mode must be On unless the model is attisPro.
func (s *Subsystem) Close() (Outcome, error) {
	return s.toggle(Closed)
}

func (s *Subsystem) toggle(target State) (Outcome, error) {
	mode, err := s.Mode()
	if err != nil {
		return HardwareMismatch, err
	}
	if mode != On && s.profile.Model != catalog.AttisPro {
		return PreconditionRequired, nil
	}
	state, err := s.State()
	if err != nil {
		return HardwareMismatch, err
	}
	if state == target {
		return Success, nil
	}

	v, err := s.read()
	if err != nil {
		return HardwareMismatch, err
	}
	if target == Closed {
		s.sleep(ToggleDelay)
		v |= stateInfo.Mask
	} else {
		v &^= stateInfo.Mask
	}
	if err := s.write(v); err != nil {
		return HardwareMismatch, err
	}
	return s.verify(target.String(), mode, &target)
}

// verify re-reads the bank and compares it with the expected mode and,
// when non-nil, the expected state.
func (s *Subsystem) verify(op string, mode Mode, state *State) (Outcome, error) {
	gotMode, err := s.Mode()
	if err != nil {
		return HardwareMismatch, err
	}
	gotState, err := s.State()
	if err != nil {
		return HardwareMismatch, err
	}
	entry := s.log.WithFields(logrus.Fields{"op": op, "mode": gotMode.String(), "state": gotState.String()})
	if gotMode != mode || (state != nil && gotState != *state) {
		entry.Error("aquastat readback mismatch")
		return HardwareMismatch, nil
	}
	entry.Info("aquastat updated")
	return Success, nil
}
