//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines drives control lines on actual hardware using Linux GPIO character device.
type RealLines struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealLines requests every control line on chipName.
// Outputs start at their bring-up level; DUT detect is an input with pull-down.
func NewRealLines(chipName string) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealLines{chip: chip, lines: make(map[int]*gpiocdev.Line)}
	for _, o := range Outputs {
		opt := gpiocdev.AsOutput()
		if o.Initial >= 0 {
			opt = gpiocdev.AsOutput(o.Initial)
		}
		line, err := chip.RequestLine(o.Offset, opt)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", o.Name, o.Offset, err)
		}
		r.lines[o.Offset] = line
	}
	for _, offset := range Inputs {
		line, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input pin %d: %w", offset, err)
		}
		r.lines[offset] = line
	}
	return r, nil
}

// SetValue drives an output line.
func (r *RealLines) SetValue(offset, value int) error {
	line, ok := r.lines[offset]
	if !ok {
		return fmt.Errorf("pin %d not requested", offset)
	}
	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("set pin %d: %w", offset, err)
	}
	return nil
}

// Value reads a line.
func (r *RealLines) Value(offset int) (int, error) {
	line, ok := r.lines[offset]
	if !ok {
		return 0, fmt.Errorf("pin %d not requested", offset)
	}
	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", offset, err)
	}
	return v, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults) before
// closing so the rig board sees released control lines.
func (r *RealLines) Close() error {
	var errs []error

	for offset, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", offset, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", offset, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	return errors.Join(errs...)
}
