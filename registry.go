package mhz19b

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry hands out one Driver per port identifier. Drivers live as long as
// the Registry.
type Registry struct {
	newTransport TransportFactory
	decoding     Decoding
	log          *zap.Logger

	mu      sync.Mutex
	drivers map[string]*Driver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTransportFactory replaces the serial port factory.
func WithTransportFactory(f TransportFactory) RegistryOption {
	return func(r *Registry) { r.newTransport = f }
}

// WithLogger sets the logger passed to every Driver.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithDecoding sets the response decoding used by every Driver.
func WithDecoding(d Decoding) RegistryOption {
	return func(r *Registry) { r.decoding = d }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		newTransport: newSerialTransport,
		decoding:     DecodeDecimalAsHex,
		log:          zap.NewNop(),
		drivers:      map[string]*Driver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get is Acquire with DefaultTimeout.
func (r *Registry) Get(port string) (*Driver, error) {
	return r.Acquire(port, DefaultTimeout)
}

// Acquire returns the Driver for port, creating it on first use. The read
// timeout of the Driver is set to timeout on every call; when several callers
// share a port the last one wins. An opened Driver applies it immediately.
func (r *Registry) Acquire(port string, timeout time.Duration) (*Driver, error) {
	if port == "" {
		return nil, ErrEmptyPort
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[port]
	if !ok {
		d = newDriver(r.newTransport(port), port, timeout, r.decoding, r.log)
		r.drivers[port] = d
		r.log.Debug("created driver", zap.String("port", port))
	}
	if err := d.setTimeout(timeout); err != nil {
		return d, err
	}
	return d, nil
}

// Ports returns the identifiers of all Drivers created so far, sorted.
func (r *Registry) Ports() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ports := make([]string, 0, len(r.drivers))
	for p := range r.drivers {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	return ports
}

// WithDriver acquires and opens the Driver for port, calls fn and closes the
// Driver again however fn returns. A close error is joined to the error
// returned by fn.
func (r *Registry) WithDriver(port string, timeout time.Duration, fn func(*Driver) error) (err error) {
	d, err := r.Acquire(port, timeout)
	if err != nil {
		return err
	}
	defer func() {
		cerr := d.Close()
		if cerr == nil {
			return
		}
		if err == nil {
			err = cerr
			return
		}
		err = errors.Join(err, fmt.Errorf("while closing: %w", cerr))
	}()
	if err := d.Open(); err != nil {
		return err
	}
	return fn(d)
}
