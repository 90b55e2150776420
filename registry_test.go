package mhz19b

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeFactory(created *atomic.Int32) TransportFactory {
	return func(port string) Transport {
		created.Add(1)
		return newFakeTransport(port)
	}
}

func TestRegistry_SameInstancePerPort(t *testing.T) {
	var created atomic.Int32
	reg := NewRegistry(WithTransportFactory(fakeFactory(&created)))

	a1, err := reg.Acquire("/dev/ttyS0", time.Second)
	require.NoError(t, err)
	a2, err := reg.Get("/dev/ttyS0")
	require.NoError(t, err)
	b, err := reg.Acquire("/dev/ttyS1", time.Second)
	require.NoError(t, err)

	require.Same(t, a1, a2)
	require.NotSame(t, a1, b)
	require.Equal(t, int32(2), created.Load())
	require.Equal(t, []string{"/dev/ttyS0", "/dev/ttyS1"}, reg.Ports())
}

func TestRegistry_EmptyPort(t *testing.T) {
	_, err := NewRegistry().Acquire("", time.Second)
	require.ErrorIs(t, err, ErrEmptyPort)
}

func TestRegistry_TimeoutLastWriterWins(t *testing.T) {
	ft := newFakeTransport("/dev/ttyS0")
	reg := NewRegistry(WithTransportFactory(func(string) Transport { return ft }))

	d, err := reg.Acquire("/dev/ttyS0", 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 200*time.Millisecond, d.Timeout())

	_, err = reg.Get("/dev/ttyS0")
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, d.Timeout())

	// Once opened, a new timeout reaches the transport immediately.
	require.NoError(t, d.Open())
	require.Equal(t, DefaultTimeout, ft.timeout)
	_, err = reg.Acquire("/dev/ttyS0", 3*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, ft.timeout)
}

func TestRegistry_ConcurrentAcquire(t *testing.T) {
	var created atomic.Int32
	reg := NewRegistry(WithTransportFactory(fakeFactory(&created)))

	const workers = 32
	drivers := make([]*Driver, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := reg.Acquire("/dev/ttyUSB0", time.Duration(i+1)*time.Millisecond)
			if err == nil {
				drivers[i] = d
				_ = d.Open()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), created.Load())
	for _, d := range drivers {
		require.Same(t, drivers[0], d)
	}
	ft := drivers[0].t.(*fakeTransport)
	require.Equal(t, 1, ft.opens)
}

func TestRegistry_WithDriver(t *testing.T) {
	ft := newFakeTransport("/dev/ttyS0")
	reg := NewRegistry(WithTransportFactory(func(string) Transport { return ft }))
	ft.responses = [][]byte{{0xff, 0x86, 0x01, 0x90, 0x00, 0x00, 0x00, 0x00, 0x00}}

	var got PPM
	err := reg.WithDriver("/dev/ttyS0", time.Second, func(d *Driver) error {
		require.True(t, d.IsOpen())
		var err error
		got, err = d.GasConcentration()
		return err
	})
	require.NoError(t, err)
	require.Equal(t, PPM(-18), got)
	require.False(t, ft.IsOpen())
	require.Equal(t, 1, ft.closes)
}

func TestRegistry_WithDriverClosesOnError(t *testing.T) {
	ft := newFakeTransport("/dev/ttyS0")
	reg := NewRegistry(WithTransportFactory(func(string) Transport { return ft }))

	err := reg.WithDriver("/dev/ttyS0", time.Second, func(d *Driver) error {
		_, err := d.GasConcentration()
		return err
	})
	require.Error(t, err)
	require.False(t, ft.IsOpen())
	require.Equal(t, 1, ft.closes)
}

func TestRegistry_WithDriverClosesOnPanic(t *testing.T) {
	ft := newFakeTransport("/dev/ttyS0")
	reg := NewRegistry(WithTransportFactory(func(string) Transport { return ft }))

	require.Panics(t, func() {
		_ = reg.WithDriver("/dev/ttyS0", time.Second, func(*Driver) error {
			panic("boom")
		})
	})
	require.False(t, ft.IsOpen())
}

func TestRegistry_WithDriverJoinsCloseError(t *testing.T) {
	ft := newFakeTransport("/dev/ttyS0")
	ft.closeErr = errFake
	reg := NewRegistry(WithTransportFactory(func(string) Transport { return ft }))
	errWork := errors.New("work failed")

	err := reg.WithDriver("/dev/ttyS0", time.Second, func(*Driver) error { return errWork })
	require.ErrorIs(t, err, errWork)
	require.ErrorIs(t, err, errFake)

	err = reg.WithDriver("/dev/ttyS0", time.Second, func(*Driver) error { return nil })
	require.ErrorIs(t, err, errFake)
}

func TestRegistry_WithDriverOpenFailure(t *testing.T) {
	ft := newFakeTransport("/dev/ttyS0")
	ft.openErr = errFake
	reg := NewRegistry(WithTransportFactory(func(string) Transport { return ft }))

	called := false
	err := reg.WithDriver("/dev/ttyS0", time.Second, func(*Driver) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errFake)
	require.False(t, called)
	require.Zero(t, ft.closes)
}
