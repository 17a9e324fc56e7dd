// Package expander provides byte-wide access to MCP23017 I/O expanders.
// The real implementation talks to the Linux I2C bus.
// The fake implementation records writes for tests.
package expander

import "fmt"

// Port selects one 8-bit GPIO register of an expander.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "GPIOB"
	}
	return "GPIOA"
}

// Device is one expander with both ports configured in a single direction.
type Device interface {
	// Address returns the 7-bit I2C address.
	Address() uint8

	// ReadPort returns the current level of all 8 lines of p.
	ReadPort(p Port) (byte, error)

	// WritePort drives all 8 lines of p.
	WritePort(p Port, v byte) error

	// Close releases the bus handle.
	Close() error
}

// I2C addresses on the switch module.
const (
	BaseAddress = 0x20 // A2..A0 strapped low

	AddrIC2   = 0x20
	AddrIC1   = 0x21
	AddrSense = 0x22
)

// MCP23017 register addresses (IOCON.BANK = 0).
const (
	RegIODIRA = 0x00
	RegIODIRB = 0x01
	RegIPOLA  = 0x02
	RegIPOLB  = 0x03
	RegGPIOA  = 0x12
	RegGPIOB  = 0x13
)

// Direction configures every line of a device.
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Register returns the GPIO register address backing p.
func (p Port) Register() uint8 {
	if p == PortB {
		return RegGPIOB
	}
	return RegGPIOA
}

func checkAddress(addr uint8) error {
	if addr < BaseAddress || addr > BaseAddress+7 {
		return fmt.Errorf("expander address %#02x out of range %#02x-%#02x", addr, BaseAddress, BaseAddress+7)
	}
	return nil
}
