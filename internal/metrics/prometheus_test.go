package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func getHistogram(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Histogram {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.Metric {
			if metricMatchesLabels(metric, labels) {
				return metric.GetHistogram()
			}
		}
	}

	return nil
}

func metricMatchesLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}

	for _, lp := range metric.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}

	return true
}

func TestNewMetricsRegistersCollectors(t *testing.T) {
	_, reg := newTestMetrics(t)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(families) == 0 {
		t.Fatalf("expected registered collectors, got none")
	}
}

func TestRecordCheckUpdatesCountersAndHistogram(t *testing.T) {
	metrics, reg := newTestMetrics(t)

	metrics.RecordCheck("homepage", "pipeline", "", "up", 500*time.Millisecond)

	if got := testutil.ToFloat64(metrics.ChecksTotal.WithLabelValues("homepage", "pipeline", "", "up")); got != 1 {
		t.Fatalf("expected ChecksTotal counter to be 1, got %v", got)
	}

	hist := getHistogram(t, reg, "hallmonitor_check_duration_seconds", map[string]string{
		"monitor": "homepage",
		"type":    "pipeline",
		"group":   "",
	})

	if hist == nil {
		t.Fatalf("expected histogram data for check duration")
	}

	if hist.GetSampleCount() != 1 {
		t.Fatalf("expected histogram sample count 1, got %d", hist.GetSampleCount())
	}

	if math.Abs(hist.GetSampleSum()-0.5) > 0.0001 {
		t.Fatalf("expected histogram sum close to 0.5, got %f", hist.GetSampleSum())
	}
}

func TestRecordErrorIncrementsCounter(t *testing.T) {
	metrics, _ := newTestMetrics(t)

	metrics.RecordError("homepage", "pipeline", "", "pipeline_timeout")

	if got := testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues("homepage", "pipeline", "", "pipeline_timeout")); got != 1 {
		t.Fatalf("expected ErrorsTotal counter to be 1, got %v", got)
	}
}

func TestSetMonitorStatus(t *testing.T) {
	metrics, _ := newTestMetrics(t)

	metrics.SetMonitorStatus("dns", "pipeline", "", true)
	if got := testutil.ToFloat64(metrics.MonitorUp.WithLabelValues("dns", "pipeline", "")); got != 1 {
		t.Fatalf("expected gauge to be 1 when monitor up, got %v", got)
	}

	metrics.SetMonitorStatus("dns", "pipeline", "", false)
	if got := testutil.ToFloat64(metrics.MonitorUp.WithLabelValues("dns", "pipeline", "")); got != 0 {
		t.Fatalf("expected gauge to be 0 when monitor down, got %v", got)
	}
}

func TestRunningMonitorsCounter(t *testing.T) {
	metrics, _ := newTestMetrics(t)

	metrics.IncrementRunningMonitors()
	metrics.IncrementRunningMonitors()
	metrics.DecrementRunningMonitors()

	if got := testutil.ToFloat64(metrics.MonitorsRunning); got != 1 {
		t.Fatalf("expected running monitors gauge to be 1, got %v", got)
	}
}
