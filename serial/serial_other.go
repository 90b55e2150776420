//go:build !linux

package serial

import (
	"fmt"
	"sync"
	"time"

	bugst "go.bug.st/serial"
)

// drainWait bounds how long Buffered waits for bytes that are already in
// flight when it samples the input queue.
const drainWait = 10 * time.Millisecond

// Port is a serial port backed by go.bug.st/serial. Open, Close and the
// configuration calls are safe for concurrent use; Read and Write must be
// serialized by the caller.
type Port struct {
	name string

	mu      sync.Mutex
	port    bugst.Port
	pending []byte
	timeout time.Duration
}

// New returns an unopened Port for the given device path.
func New(name string) *Port {
	return &Port{name: name}
}

// Name returns the device path the port was created with.
func (p *Port) Name() string {
	return p.name
}

// Open opens the device with 9600 8N1; call Configure to change it.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		return nil
	}
	port, err := bugst.Open(p.name, &bugst.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", p.name, err)
	}
	p.port = port
	p.pending = nil
	return nil
}

// IsOpen reports whether the device is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port != nil
}

// Configure applies baud rate, character size, stop bits and parity.
func (p *Port) Configure(m Mode) error {
	if err := m.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return ErrClosed
	}
	mode := &bugst.Mode{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	switch m.Parity {
	case OddParity:
		mode.Parity = bugst.OddParity
	case EvenParity:
		mode.Parity = bugst.EvenParity
	}
	if m.StopBits == TwoStopBits {
		mode.StopBits = bugst.TwoStopBits
	}
	if err := p.port.SetMode(mode); err != nil {
		return fmt.Errorf("set mode %s: %w", m, err)
	}
	return nil
}

// SetReadTimeout sets how long Read blocks waiting for a full block.
// Zero or negative means wait forever.
func (p *Port) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
	return nil
}

// Buffered moves whatever the device has ready into an internal buffer and
// returns its size. Subsequent Reads consume that buffer first.
func (p *Port) Buffered() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return 0, ErrClosed
	}
	if err := p.port.SetReadTimeout(drainWait); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}
	buf := make([]byte, 256)
	for {
		n, err := p.port.Read(buf)
		if err != nil {
			return len(p.pending), fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			break
		}
		p.pending = append(p.pending, buf[:n]...)
	}
	return len(p.pending), nil
}

// Write writes all of b to the port.
func (p *Port) Write(b []byte) (int, error) {
	port := p.current()
	if port == nil {
		return 0, ErrClosed
	}
	n, err := port.Write(b)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

// Read blocks until len(b) bytes have been read or the read timeout expires.
// A timeout returns the bytes read so far with ErrTimeout.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	port := p.port
	timeout := p.timeout
	read := copy(b, p.pending)
	p.pending = p.pending[read:]
	p.mu.Unlock()
	if port == nil {
		return 0, ErrClosed
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for read < len(b) {
		wait := bugst.NoTimeout
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return read, ErrTimeout
			}
		}
		if err := port.SetReadTimeout(wait); err != nil {
			return read, fmt.Errorf("set read timeout: %w", err)
		}
		n, err := port.Read(b[read:])
		if err != nil {
			return read, fmt.Errorf("read: %w", err)
		}
		read += n
	}
	return read, nil
}

// Close closes the device. Closing a port that is not open is a no-op.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	p.pending = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) current() bugst.Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}
