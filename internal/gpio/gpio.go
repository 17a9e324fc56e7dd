// Package gpio drives the Raspberry Pi control lines of the rig board.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Lines sets and reads control lines by BCM offset.
type Lines interface {
	// SetValue drives an output line: 0 = low, 1 = high.
	SetValue(offset, value int) error

	// Value returns the current level of a line.
	Value(offset int) (int, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinI2CEnable  = 0
	PinFTDIReset  = 5  // active low
	PinUSBHubRst  = 6  // active high
	PinVBUSCon    = 12
	PinOut2Reset  = 13 // IC2 expander, active low
	PinDebugLED   = 17
	PinExecute    = 18
	PinOut1Reset  = 19 // IC1 expander, active low
	PinFlashSel   = 22
	PinAPReset    = 23 // active low
	PinAPBoot     = 24 // active low
	PinVoltageSel = 25
	PinInReset    = 26 // sense expander, active low
	PinDUTDetect  = 27
)

// Output is an output line and the level it is driven to at bring-up.
// A negative Initial leaves the line at the driver default.
type Output struct {
	Name    string
	Offset  int
	Initial int
}

// Outputs lists the control outputs in bring-up order.
var Outputs = []Output{
	{"DBG_LED", PinDebugLED, 0},
	{"USB_HUB_RST", PinUSBHubRst, 0},
	{"FLASH_SEL", PinFlashSel, 0},
	{"VOLTAGE_SEL", PinVoltageSel, 0},
	{"I2C_EN", PinI2CEnable, 1},
	{"OUT2_RSTn", PinOut2Reset, 1},
	{"OUT1_RSTn", PinOut1Reset, 1},
	{"IN_RSTn", PinInReset, 1},
	{"FTDI_RSTn", PinFTDIReset, 1},
	{"AP_RSTn", PinAPReset, -1},
	{"AP_BOOTn", PinAPBoot, -1},
	{"VBUS_CON", PinVBUSCon, -1},
	{"RPI_EXECUTE", PinExecute, 0},
}

// Inputs lists the control inputs.
var Inputs = []int{PinDUTDetect}

// BringUp drives every output to its initial level, then raises the
// EXECUTE line to signal the rig is under control.
func BringUp(l Lines) error {
	for _, o := range Outputs {
		if o.Initial < 0 || o.Offset == PinExecute {
			continue
		}
		if err := l.SetValue(o.Offset, o.Initial); err != nil {
			return fmt.Errorf("set %s: %w", o.Name, err)
		}
	}
	if err := l.SetValue(PinExecute, 1); err != nil {
		return fmt.Errorf("set RPI_EXECUTE: %w", err)
	}
	return nil
}

// Release lowers the EXECUTE line.
func Release(l Lines) error {
	if err := l.SetValue(PinExecute, 0); err != nil {
		return fmt.Errorf("clear RPI_EXECUTE: %w", err)
	}
	return nil
}

// DUTPresent reports whether a device under test is detected.
func DUTPresent(l Lines) (bool, error) {
	v, err := l.Value(PinDUTDetect)
	if err != nil {
		return false, fmt.Errorf("read DUT_DET: %w", err)
	}
	return v == 1, nil
}
