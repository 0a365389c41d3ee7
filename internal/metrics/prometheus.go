package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Hall Monitor
type Metrics struct {
	// Counters
	ChecksTotal *prometheus.CounterVec
	ErrorsTotal *prometheus.CounterVec

	// Gauges
	MonitorUp       *prometheus.GaugeVec
	MonitorsRunning prometheus.Gauge

	// Histograms
	CheckDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		// Counters
		ChecksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hallmonitor_checks_total",
				Help: "Total number of monitor checks performed",
			},
			[]string{"monitor", "type", "group", "status"},
		),

		ErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hallmonitor_errors_total",
				Help: "Total number of monitor check errors",
			},
			[]string{"monitor", "type", "group", "error_type"},
		),

		// Gauges
		MonitorUp: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hallmonitor_monitor_up",
				Help: "Whether a monitor's last pipeline run finished up (1) or not (0)",
			},
			[]string{"monitor", "type", "group"},
		),

		MonitorsRunning: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "hallmonitor_monitors_running",
				Help: "Number of currently running monitor checks",
			},
		),

		// Histograms with default buckets
		CheckDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hallmonitor_check_duration_seconds",
				Help:    "Duration of monitor checks in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"monitor", "type", "group"},
		),
	}

	return m
}

// RecordCheck records a monitor check
func (m *Metrics) RecordCheck(monitor, monitorType, group, status string, duration time.Duration) {
	labels := prometheus.Labels{
		"monitor": monitor,
		"type":    monitorType,
		"group":   group,
		"status":  status,
	}

	m.ChecksTotal.With(labels).Inc()
	m.CheckDuration.With(prometheus.Labels{
		"monitor": monitor,
		"type":    monitorType,
		"group":   group,
	}).Observe(duration.Seconds())
}

// RecordError records a monitor error
func (m *Metrics) RecordError(monitor, monitorType, group, errorType string) {
	m.ErrorsTotal.With(prometheus.Labels{
		"monitor":    monitor,
		"type":       monitorType,
		"group":      group,
		"error_type": errorType,
	}).Inc()
}

// SetMonitorStatus sets the up/down status of a monitor
func (m *Metrics) SetMonitorStatus(monitor, monitorType, group string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	m.MonitorUp.With(prometheus.Labels{
		"monitor": monitor,
		"type":    monitorType,
		"group":   group,
	}).Set(value)
}

// IncrementRunningMonitors increments the running monitors counter
func (m *Metrics) IncrementRunningMonitors() {
	m.MonitorsRunning.Inc()
}

// DecrementRunningMonitors decrements the running monitors counter
func (m *Metrics) DecrementRunningMonitors() {
	m.MonitorsRunning.Dec()
}
