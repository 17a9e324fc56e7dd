//go:build linux

package expander

import (
	"fmt"

	"github.com/racerxdl/go-mcp23017"
)

// mcpDevice is the part of *mcp23017.Device the expander uses.
type mcpDevice interface {
	DigitalWrite(pin uint8, level mcp23017.PinLevel) error
	ReadGPIO(n mcp23017.DevicePort) (uint8, error)
	Close() error
}

// MCP is an MCP23017 on the Linux I2C bus.
type MCP struct {
	dev  mcpDevice
	addr uint8
	dir  Direction
}

// Open opens the expander at addr on I2C bus and sets every line to dir.
// Input lines are left without pull-ups and with non-inverted polarity.
//
// The driver resets the chip on open: every line becomes an input with a
// zero output latch, so relays driven by an output expander drop until the
// next write.
func Open(bus, addr uint8, dir Direction) (*MCP, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}

	dev, err := mcp23017.Open(bus, addr-BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("open expander %#02x on bus %d: %w", addr, bus, err)
	}

	for pin := uint8(0); pin < 16; pin++ {
		if dir == Input {
			err = dev.PinMode(pin, mcp23017.INPUT)
		} else {
			err = dev.PinMode(pin, mcp23017.OUTPUT)
		}
		if err != nil {
			dev.Close()
			return nil, fmt.Errorf("expander %#02x pin %d %s: %w", addr, pin, dir, err)
		}
		if dir == Input {
			if err := dev.SetPullUp(pin, false); err != nil {
				dev.Close()
				return nil, fmt.Errorf("expander %#02x pin %d pull-up: %w", addr, pin, err)
			}
		}
	}

	return &MCP{dev: dev, addr: addr, dir: dir}, nil
}

// Address returns the 7-bit I2C address.
func (m *MCP) Address() uint8 { return m.addr }

// ReadPort reads the GPIO register of p in one transaction.
func (m *MCP) ReadPort(p Port) (byte, error) {
	v, err := m.dev.ReadGPIO(mcp23017.DevicePort(p))
	if err != nil {
		return 0, fmt.Errorf("read expander %#02x %s: %w", m.addr, p, err)
	}
	return v, nil
}

// WritePort drives the 8 lines of p, bit 0 first. A set bit drives its
// line high.
func (m *MCP) WritePort(p Port, v byte) error {
	if m.dir != Output {
		return fmt.Errorf("write expander %#02x %s: configured as %s", m.addr, p, m.dir)
	}
	base := uint8(p) * 8
	for bit := uint8(0); bit < 8; bit++ {
		if err := m.dev.DigitalWrite(base+bit, driveLevel(v&(1<<bit) != 0)); err != nil {
			return fmt.Errorf("write expander %#02x %s bit %d: %w", m.addr, p, bit, err)
		}
	}
	return nil
}

// driveLevel maps a wanted line state to the level DigitalWrite expects.
// The driver writes a 1 to the latch for LOW and a 0 for HIGH.
func driveLevel(high bool) mcp23017.PinLevel {
	if high {
		return mcp23017.LOW
	}
	return mcp23017.HIGH
}

// Close releases the bus handle.
func (m *MCP) Close() error {
	if m.dev == nil {
		return nil
	}
	if err := m.dev.Close(); err != nil {
		return fmt.Errorf("close expander %#02x: %w", m.addr, err)
	}
	m.dev = nil
	return nil
}
