package gpio

import (
	"fmt"
	"sync"
)

// FakeLines is a test double that records line writes.
type FakeLines struct {
	mu sync.Mutex

	// Levels holds the current level of each line.
	Levels map[int]int

	// History lists every SetValue call in order.
	History []SetCall

	// SetError and ReadError, if set, are returned by SetValue and Value.
	SetError  error
	ReadError error

	// CloseError is returned by Close.
	CloseError error

	// Closed tracks if Close was called
	Closed bool
}

// SetCall is one recorded SetValue.
type SetCall struct {
	Offset int
	Value  int
}

// NewFakeLines creates a FakeLines with every line low.
func NewFakeLines() *FakeLines {
	return &FakeLines{Levels: make(map[int]int)}
}

// SetValue records the write.
func (f *FakeLines) SetValue(offset, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if f.Closed {
		return fmt.Errorf("pin %d: lines closed", offset)
	}
	f.History = append(f.History, SetCall{offset, value})
	f.Levels[offset] = value
	return nil
}

// Value returns the recorded level.
func (f *FakeLines) Value(offset int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Levels[offset], nil
}

// Close marks the lines as closed.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return f.CloseError
}
