//go:build !linux

package expander

import "errors"

// MCP is not available on non-Linux platforms.
type MCP struct{}

// Open returns an error on non-Linux platforms.
func Open(bus, addr uint8, dir Direction) (*MCP, error) {
	return nil, errors.New("expander: not supported on this platform (requires Linux)")
}

// Address is not implemented on non-Linux platforms.
func (m *MCP) Address() uint8 { return 0 }

// ReadPort is not implemented on non-Linux platforms.
func (m *MCP) ReadPort(p Port) (byte, error) {
	return 0, errors.New("expander: not supported")
}

// WritePort is not implemented on non-Linux platforms.
func (m *MCP) WritePort(p Port, v byte) error {
	return errors.New("expander: not supported")
}

// Close is not implemented on non-Linux platforms.
func (m *MCP) Close() error {
	return nil
}
