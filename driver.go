package mhz19b

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3"
)

// DefaultTimeout is the read timeout used by Registry.Get.
const DefaultTimeout = time.Second

// Driver is an MH-Z19B sensor attached to one serial port.
//
// Open and Close move the Driver between two states, closed and opened. They
// are idempotent: opening an opened Driver or closing a closed one does
// nothing, so the device is never reopened or reclosed. This is a guard, not
// a reference count; one Close undoes any number of Opens.
type Driver struct {
	t        Transport
	port     string
	decoding Decoding
	log      *zap.Logger

	mu      sync.Mutex
	opened  bool
	timeout time.Duration
}

var _ conn.Resource = (*Driver)(nil)

func newDriver(t Transport, port string, timeout time.Duration, d Decoding, log *zap.Logger) *Driver {
	return &Driver{
		t:        t,
		port:     port,
		decoding: d,
		log:      log.With(zap.String("port", port)),
		timeout:  timeout,
	}
}

// Open opens and configures the serial port if the Driver is closed.
// On failure the Driver stays closed.
func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log.Info("open: before", zap.Bool("opened", d.opened), zap.Duration("timeout", d.timeout))
	defer func() {
		d.log.Info("open: after", zap.Bool("opened", d.opened), zap.Duration("timeout", d.timeout))
	}()

	if d.opened {
		return nil
	}

	d.log.Info("opening serial port")
	if err := d.t.Open(); err != nil {
		d.log.Warn("failed to open serial port", zap.Error(err))
		return &OpError{Op: "open", Port: d.port, Err: err}
	}
	if err := d.configure(); err != nil {
		d.log.Warn("failed to configure serial port", zap.Error(err))
		if cerr := d.t.Close(); cerr != nil {
			d.log.Warn("failed to close serial port after configure error", zap.Error(cerr))
		}
		return &OpError{Op: "configure", Port: d.port, Err: err}
	}
	d.opened = true
	d.log.Info("opened serial port", zap.Stringer("mode", lineMode))
	return nil
}

func (d *Driver) configure() error {
	if err := d.t.Configure(lineMode); err != nil {
		return err
	}
	return d.t.SetReadTimeout(d.timeout)
}

// Close closes the serial port if the Driver is opened. The Driver is
// considered closed afterwards even when closing the port fails.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log.Info("close: before", zap.Bool("opened", d.opened), zap.Duration("timeout", d.timeout))
	defer func() {
		d.log.Info("close: after", zap.Bool("opened", d.opened), zap.Duration("timeout", d.timeout))
	}()

	if !d.opened {
		return nil
	}
	d.opened = false

	if !d.t.IsOpen() {
		d.log.Info("serial port already closed")
		return nil
	}
	d.log.Info("closing serial port")
	if err := d.t.Close(); err != nil {
		d.log.Warn("failed to close serial port", zap.Error(err))
		return &OpError{Op: "close", Port: d.port, Err: err}
	}
	d.log.Info("closed serial port")
	return nil
}

// Halt implements conn.Resource. It closes the Driver.
func (d *Driver) Halt() error {
	return d.Close()
}

// IsOpen reports whether the underlying serial port is open.
func (d *Driver) IsOpen() bool {
	return d.t.IsOpen()
}

// PortName returns the canonical port name: device paths are reduced to
// "/dev/" plus the device's base name, other identifiers are returned as is.
func (d *Driver) PortName() string {
	if strings.HasPrefix(d.port, "/dev/") {
		return "/dev/" + path.Base(d.port)
	}
	return d.port
}

// Timeout returns the current read timeout.
func (d *Driver) Timeout() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeout
}

func (d *Driver) String() string {
	return fmt.Sprintf("mhz19b(%s)", d.PortName())
}

// setTimeout stores the read timeout and applies it right away when the port
// is already open.
func (d *Driver) setTimeout(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = timeout
	if !d.opened {
		return nil
	}
	if err := d.t.SetReadTimeout(timeout); err != nil {
		return &OpError{Op: "configure", Port: d.port, Err: err}
	}
	return nil
}

func (d *Driver) isOpened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// write discards anything left unread from an earlier exchange, then sends f.
func (d *Driver) write(f Frame) error {
	if !d.isOpened() {
		return ErrNotOpen
	}

	n, err := d.t.Buffered()
	if err != nil {
		return &OpError{Op: "drain", Port: d.port, Err: err}
	}
	if n > 0 {
		unread := make([]byte, n)
		if _, err := d.t.Read(unread); err != nil {
			return &OpError{Op: "drain", Port: d.port, Err: err}
		}
		d.log.Info("deleted unread buffer", zap.Int("length", n))
	}

	d.log.Debug("command: write", zap.Stringer("frame", f))
	w, err := d.t.Write(f.Bytes())
	if err != nil {
		d.log.Warn("failed to write", zap.Error(err))
		return &OpError{Op: "write", Port: d.port, Err: err}
	}
	if w != FrameSize {
		d.log.Warn("failed to write", zap.Int("written", w))
		return &OpError{Op: "write", Port: d.port, Err: fmt.Errorf("wrote %d of %d bytes", w, FrameSize)}
	}
	return nil
}

func (d *Driver) read(size int) ([]byte, error) {
	in := make([]byte, size)
	n, err := d.t.Read(in)
	if err != nil {
		d.log.Warn("failed to read", zap.Int("read", n), zap.Error(err))
		return nil, &OpError{Op: "read", Port: d.port, Err: err}
	}
	if n != size {
		d.log.Warn("failed to read", zap.Int("read", n))
		return nil, &OpError{Op: "read", Port: d.port, Err: fmt.Errorf("read %d of %d bytes", n, size)}
	}
	d.log.Debug("command: read", zap.String("frame", hexDump(in)))
	return in, nil
}
