package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-mhz19b/internal/monitor"
)

func TestSensorMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewSensorMetrics(reg)

	at := time.Unix(1760000000, 0)
	require.NoError(t, m.Record(context.Background(), monitor.Reading{Port: "/dev/serial0", PPM: 640, Time: at}))
	require.NoError(t, m.Record(context.Background(), monitor.Reading{Port: "/dev/serial0", PPM: 655, Time: at}))
	m.RecordError("/dev/serial0", errors.New("read timeout"))

	require.Equal(t, 655.0, testutil.ToFloat64(m.CO2.WithLabelValues("/dev/serial0")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ReadTotal.WithLabelValues("/dev/serial0", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReadTotal.WithLabelValues("/dev/serial0", "error")))
	require.Equal(t, 1760000000.0, testutil.ToFloat64(m.LastRead.WithLabelValues("/dev/serial0")))
}
