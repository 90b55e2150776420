package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-mhz19b"
	cfgpkg "github.com/luhtfiimanal/go-mhz19b/internal/config"
	appmetrics "github.com/luhtfiimanal/go-mhz19b/internal/metrics"
	"github.com/luhtfiimanal/go-mhz19b/internal/monitor"
)

func serve(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	cfg := cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	reg := appmetrics.NewRegistry()
	sm := appmetrics.NewSensorMetrics(reg)
	handler := appmetrics.Handler(reg)
	srv := New(cfg, "/metrics", handler, func() bool { return true }, nil)

	require.Equal(t, http.StatusOK, serve(t, srv, "/healthz").Code)
	require.Equal(t, http.StatusOK, serve(t, srv, "/readyz").Code)

	require.NoError(t, sm.Record(context.Background(), monitor.Reading{Port: "/dev/serial0", PPM: 612, Time: time.Now()}))
	sm.RecordError("/dev/serial0", errors.New("timeout"))

	rr := serve(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `co2_concentration_ppm{port="/dev/serial0"} 612`)
	require.Contains(t, body, `co2_reads_total{port="/dev/serial0",result="ok"} 1`)
	require.Contains(t, body, `co2_reads_total{port="/dev/serial0",result="error"} 1`)
}

func TestReadyzNotReady(t *testing.T) {
	cfg := cfgpkg.HTTPConfig{Addr: ":0"}
	srv := New(cfg, "", nil, func() bool { return false }, nil)

	require.Equal(t, http.StatusServiceUnavailable, serve(t, srv, "/readyz").Code)
	require.Equal(t, http.StatusNotFound, serve(t, srv, "/co2").Code)
}

func TestLatestReading(t *testing.T) {
	latest := &monitor.Latest{}
	srv := New(cfgpkg.HTTPConfig{Addr: ":0"}, "", nil, nil, latest)

	rr := serve(t, srv, "/co2")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "no reading"))

	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	require.NoError(t, latest.Record(context.Background(), monitor.Reading{Port: "/dev/serial0", PPM: 784, Time: at}))

	rr = serve(t, srv, "/co2")
	require.Equal(t, http.StatusOK, rr.Code)
	var got monitor.Reading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "/dev/serial0", got.Port)
	require.Equal(t, mhz19b.PPM(784), got.PPM)
	require.True(t, at.Equal(got.Time))
}
