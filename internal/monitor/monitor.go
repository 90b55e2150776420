// Package monitor polls a CO2 sensor on a fixed interval and hands every
// reading to a set of recorders.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-mhz19b"
)

// Sensor is the part of *mhz19b.Driver the monitor needs.
type Sensor interface {
	GasConcentration() (mhz19b.PPM, error)
	PortName() string
}

// Reading is one successful concentration read.
type Reading struct {
	Port string     `json:"port"`
	PPM  mhz19b.PPM `json:"ppm"`
	Time time.Time  `json:"time"`
}

// Recorder consumes readings.
type Recorder interface {
	Record(ctx context.Context, r Reading) error
}

// ErrorRecorder is implemented by recorders that also count failed reads.
type ErrorRecorder interface {
	RecordError(port string, err error)
}

// Monitor polls a Sensor.
type Monitor struct {
	sensor    Sensor
	interval  time.Duration
	log       *zap.Logger
	recorders []Recorder
	now       func() time.Time
}

// New returns a Monitor reading s every interval.
func New(s Sensor, interval time.Duration, log *zap.Logger, recorders ...Recorder) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		sensor:    s,
		interval:  interval,
		log:       log,
		recorders: recorders,
		now:       time.Now,
	}
}

// Run reads the sensor immediately and then on every tick until ctx is done,
// which returns nil. A failed read ends Run with that error; the driver does
// not retry and neither does the monitor.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.poll(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped", zap.Error(ctx.Err()))
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) poll(ctx context.Context) error {
	port := m.sensor.PortName()
	ppm, err := m.sensor.GasConcentration()
	if err != nil {
		for _, rec := range m.recorders {
			if er, ok := rec.(ErrorRecorder); ok {
				er.RecordError(port, err)
			}
		}
		m.log.Warn("failed to read concentration", zap.String("port", port), zap.Error(err))
		return fmt.Errorf("read %s: %w", port, err)
	}

	r := Reading{Port: port, PPM: ppm, Time: m.now()}
	for _, rec := range m.recorders {
		if err := rec.Record(ctx, r); err != nil {
			m.log.Warn("recorder failed", zap.String("port", port), zap.Error(err))
		}
	}
	return nil
}

// Printer writes readings as "co2:<ppm>" lines for consumption by other
// programs.
type Printer struct {
	W io.Writer
}

// Record implements Recorder.
func (p Printer) Record(_ context.Context, r Reading) error {
	_, err := fmt.Fprintf(p.W, "co2:%d\n", int(r.PPM))
	return err
}

// LogRecorder logs each reading at info level.
type LogRecorder struct {
	Log *zap.Logger
}

// Record implements Recorder.
func (l LogRecorder) Record(_ context.Context, r Reading) error {
	l.Log.Info(fmt.Sprintf("co2:%d", int(r.PPM)), zap.String("port", r.Port))
	return nil
}

// ErrNoReading is returned by Latest.Get before the first reading arrived.
var ErrNoReading = errors.New("monitor: no reading yet")

// Latest keeps the most recent reading.
type Latest struct {
	mu sync.RWMutex
	r  *Reading
}

// Record implements Recorder.
func (l *Latest) Record(_ context.Context, r Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = &r
	return nil
}

// Get returns the most recent reading.
func (l *Latest) Get() (Reading, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.r == nil {
		return Reading{}, ErrNoReading
	}
	return *l.r, nil
}
