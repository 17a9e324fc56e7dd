//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetValue is not implemented on non-Linux platforms.
func (r *RealLines) SetValue(offset, value int) error {
	return errors.New("gpio: not supported")
}

// Value is not implemented on non-Linux platforms.
func (r *RealLines) Value(offset int) (int, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}
