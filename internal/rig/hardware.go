package rig

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/expander"
	"github.com/sweeney/relay-rig/internal/gpio"
)

// Hardware bundles the devices a Rig owns. Lines may be nil when the rig
// board control lines are not managed by this process.
type Hardware struct {
	IC1   expander.Device
	IC2   expander.Device
	Sense expander.Device
	Lines gpio.Lines
}

// HardwareConfig locates the real devices.
type HardwareConfig struct {
	Bus      uint8
	IC1      uint8
	IC2      uint8
	Sense    uint8
	GPIOChip string // empty skips control lines
	Log      logrus.FieldLogger
}

// OpenHardware requests the control lines, brings the board up and opens
// the three expanders. Opening resets each expander, so every relay is
// released until the rig is powered. On error everything already opened is
// closed.
func OpenHardware(cfg HardwareConfig) (Hardware, error) {
	var hw Hardware
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if cfg.GPIOChip != "" {
		lines, err := gpio.NewRealLines(cfg.GPIOChip)
		if err != nil {
			return hw, fmt.Errorf("init gpio: %w", err)
		}
		hw.Lines = lines
		if err := gpio.BringUp(lines); err != nil {
			hw.Close()
			return Hardware{}, fmt.Errorf("bring up board: %w", err)
		}
	}

	open := func(addr uint8, dir expander.Direction) (expander.Device, error) {
		dev, err := expander.Open(cfg.Bus, addr, dir)
		if err != nil {
			return nil, err
		}
		if dir == expander.Output {
			log.WithField("addr", fmt.Sprintf("%#02x", addr)).Warn("expander reset on open, relays released")
		}
		return dev, nil
	}

	var err error
	if hw.IC1, err = open(cfg.IC1, expander.Output); err != nil {
		hw.Close()
		return Hardware{}, err
	}
	if hw.IC2, err = open(cfg.IC2, expander.Output); err != nil {
		hw.Close()
		return Hardware{}, err
	}
	if hw.Sense, err = open(cfg.Sense, expander.Input); err != nil {
		hw.Close()
		return Hardware{}, err
	}
	return hw, nil
}

// Close releases every device, collecting errors.
func (h Hardware) Close() error {
	var errs []error
	for _, dev := range []expander.Device{h.IC1, h.IC2, h.Sense} {
		if dev == nil {
			continue
		}
		if err := dev.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if h.Lines != nil {
		if err := h.Lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gpio: %w", err))
		}
	}
	return errors.Join(errs...)
}
