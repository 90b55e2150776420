package mhz19b

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-mhz19b/serial"
)

var zapNop = zap.NewNop()

// fakeTransport records every call and serves reads from a queue.
type fakeTransport struct {
	name string

	mu        sync.Mutex
	open      bool
	opens     int
	closes    int
	mode      serial.Mode
	timeout   time.Duration
	calls     []string
	written   [][]byte
	unread    []byte
	responses [][]byte
	shortBy   int

	openErr      error
	closeErr     error
	configureErr error
	writeErr     error
	readErr      error
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name}
}

func (f *fakeTransport) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open")
	if f.openErr != nil {
		return f.openErr
	}
	f.opens++
	f.open = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	f.closes++
	if f.closeErr != nil {
		return f.closeErr
	}
	f.open = false
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Configure(m serial.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("configure")
	if f.configureErr != nil {
		return f.configureErr
	}
	f.mode = m
	return nil
}

func (f *fakeTransport) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("timeout")
	f.timeout = d
	return nil
}

func (f *fakeTransport) Buffered() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("buffered")
	return len(f.unread), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("read")
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.unread) > 0 {
		n := copy(p, f.unread)
		f.unread = f.unread[n:]
		return n, nil
	}
	if len(f.responses) == 0 {
		return 0, serial.ErrTimeout
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	n := copy(p, resp)
	if f.shortBy > 0 {
		return n - f.shortBy, serial.ErrTimeout
	}
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("write")
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeTransport) lastWritten() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

var errFake = errors.New("fake transport failure")

// newTestDriver returns an opened Driver backed by a fake transport.
func newTestDriver(opts ...RegistryOption) (*Driver, *fakeTransport) {
	ft := newFakeTransport("/dev/ttyFAKE0")
	opts = append([]RegistryOption{WithTransportFactory(func(string) Transport { return ft })}, opts...)
	d, err := NewRegistry(opts...).Acquire(ft.name, 50*time.Millisecond)
	if err != nil {
		panic(err)
	}
	if err := d.Open(); err != nil {
		panic(err)
	}
	return d, ft
}
