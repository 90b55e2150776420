package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luhtfiimanal/go-mhz19b/internal/monitor"
)

// NewRegistry returns a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// SensorMetrics records readings as Prometheus metrics.
type SensorMetrics struct {
	CO2       *prometheus.GaugeVec   // labels: port
	ReadTotal *prometheus.CounterVec // labels: port, result=ok|error
	LastRead  *prometheus.GaugeVec   // labels: port
}

// NewSensorMetrics registers and returns the sensor metrics.
func NewSensorMetrics(reg prometheus.Registerer) *SensorMetrics {
	m := &SensorMetrics{
		CO2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "co2_concentration_ppm",
			Help: "Last CO2 concentration reported by the sensor.",
		}, []string{"port"}),
		ReadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "co2_reads_total",
			Help: "Concentration reads by result.",
		}, []string{"port", "result"}),
		LastRead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "co2_last_read_timestamp_seconds",
			Help: "Unix time of the last successful read.",
		}, []string{"port"}),
	}
	reg.MustRegister(m.CO2, m.ReadTotal, m.LastRead)
	return m
}

// Record implements monitor.Recorder.
func (m *SensorMetrics) Record(_ context.Context, r monitor.Reading) error {
	m.CO2.WithLabelValues(r.Port).Set(float64(r.PPM))
	m.LastRead.WithLabelValues(r.Port).Set(float64(r.Time.UnixNano()) / 1e9)
	m.ReadTotal.WithLabelValues(r.Port, "ok").Inc()
	return nil
}

// RecordError implements monitor.ErrorRecorder.
func (m *SensorMetrics) RecordError(port string, _ error) {
	m.ReadTotal.WithLabelValues(port, "error").Inc()
}
