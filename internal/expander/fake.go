package expander

import (
	"errors"
	"sync"
)

// Write is one recorded WritePort call.
type Write struct {
	Addr  uint8
	Port  Port
	Value byte
}

// Journal records writes across several fakes in call order.
type Journal struct {
	mu     sync.Mutex
	writes []Write
}

func (j *Journal) record(w Write) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.writes = append(j.writes, w)
}

// Writes returns a copy of every recorded write.
func (j *Journal) Writes() []Write {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Write(nil), j.writes...)
}

// Reset drops every recorded write.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.writes = nil
}

// Fake is a test double for an expander. Output writes latch and read back
// unless IgnoreWrites is set. When Script is non-empty, reads return scripted
// 16-bit samples instead: PortA returns the low byte and PortB returns the
// high byte then advances to the next sample. The last sample repeats.
type Fake struct {
	mu sync.Mutex

	Addr    uint8
	Journal *Journal

	// Script contains scripted input samples (bit 0 = GPA0, bit 8 = GPB0).
	Script []uint16
	index  int

	// IgnoreWrites records writes without latching them, emulating a relay
	// board that does not respond.
	IgnoreWrites bool

	// ReadError and WriteError, if set, are returned by every call.
	ReadError  error
	WriteError error

	// CloseError is returned by Close.
	CloseError error

	Closed bool

	latched [2]byte
	reads   int
}

// NewFake creates a Fake at addr. j may be nil.
func NewFake(addr uint8, j *Journal) *Fake {
	if j == nil {
		j = &Journal{}
	}
	return &Fake{Addr: addr, Journal: j}
}

// Address returns the fake's address.
func (f *Fake) Address() uint8 { return f.Addr }

// ReadPort returns the latched or scripted value of p.
func (f *Fake) ReadPort(p Port) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	f.reads++

	if len(f.Script) == 0 {
		return f.latched[p&1], nil
	}
	sample := f.Script[f.index]
	if p == PortA {
		return byte(sample), nil
	}
	if f.index < len(f.Script)-1 {
		f.index++
	}
	return byte(sample >> 8), nil
}

// WritePort records the write and latches v.
func (f *Fake) WritePort(p Port, v byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return errors.New("expander closed")
	}
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Journal.record(Write{Addr: f.Addr, Port: p, Value: v})
	if !f.IgnoreWrites {
		f.latched[p&1] = v
	}
	return nil
}

// Set forces the latched value of p without recording a write.
func (f *Fake) Set(p Port, v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latched[p&1] = v
}

// Latched returns the value last latched on p.
func (f *Fake) Latched(p Port) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latched[p&1]
}

// Reads returns the number of successful ReadPort calls.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return f.CloseError
}
