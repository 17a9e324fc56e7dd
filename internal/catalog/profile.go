package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Model is a thermostat model identifier.
type Model string

const (
	Athena      Model = "athena"
	Nike        Model = "nike"
	Apollo      Model = "apollo"
	Vulcan      Model = "vulcan"
	Ares        Model = "ares"
	Artemis     Model = "artemis"
	AttisPro    Model = "attisPro"
	AttisRetail Model = "attisRetail"
)

// Models lists every supported model.
var Models = []Model{Athena, Nike, Apollo, Vulcan, Ares, Artemis, AttisPro, AttisRetail}

// Valid reports whether m is a supported model.
func (m Model) Valid() bool {
	for _, k := range Models {
		if k == m {
			return true
		}
	}
	return false
}

// ParseModel matches s against the supported models, ignoring case.
func ParseModel(s string) (Model, error) {
	for _, m := range Models {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown thermostat model %q", s)
}

// Profile describes the thermostat under test and how it is wired.
type Profile struct {
	Model    Model `yaml:"model" json:"model"`
	HasPEK   bool  `yaml:"has_pek" json:"has_pek"`
	HasRH    bool  `yaml:"has_rh" json:"has_rh"`
	HasRC    bool  `yaml:"has_rc" json:"has_rc"`
	InPhase  bool  `yaml:"in_phase" json:"in_phase"`
	AccMinus bool  `yaml:"acc_minus" json:"acc_minus"`
}

// DefaultProfile is the profile the rig boots with: an ares thermostat
// powered from RC.
func DefaultProfile() Profile {
	return Profile{Model: Ares, HasRC: true, InPhase: true}
}

func (p Profile) String() string {
	return fmt.Sprintf("model=%s pek=%t rh=%t rc=%t in_phase=%t acc_minus=%t",
		p.Model, p.HasPEK, p.HasRH, p.HasRC, p.InPhase, p.AccMinus)
}

// ErrInvalidProfile is matched by every profile validation failure.
var ErrInvalidProfile = errors.New("invalid device profile")

// InvalidProfileError describes why a profile was rejected.
type InvalidProfileError struct {
	Profile Profile
	Reason  string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid device profile (%s): %s", e.Profile.Model, e.Reason)
}

func (e *InvalidProfileError) Unwrap() error { return ErrInvalidProfile }

// Validate rejects profiles that cannot be wired on the switch module.
func (p Profile) Validate() error {
	invalid := func(reason string) error {
		return &InvalidProfileError{Profile: p, Reason: reason}
	}
	switch {
	case !p.Model.Valid():
		return invalid(fmt.Sprintf("unknown model %q", p.Model))
	case p.Model != Athena && p.HasRH && !p.HasRC:
		return invalid("only athena can be powered from RH alone")
	case p.HasPEK && p.HasRH:
		return invalid("RH is not supported with a PEK")
	case !p.HasRH && !p.HasRC:
		return invalid("RH or RC must be present")
	}
	return nil
}
