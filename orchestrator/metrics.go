package orchestrator

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/orderflow/metrics"
)

// runMetrics holds the coordinator's Prometheus metrics.
type runMetrics struct {
	finished    metrics.CounterVec
	duration    metrics.GaugeVec
	running     metrics.Gauge
	runDuration metrics.Gauge
}

func newRunMetrics(reg metrics.Registry) (*runMetrics, error) {
	finished, err := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "units_finished_total",
		Help: "Units that reached a terminal status, by unit and status.",
	}, []string{"unit", "status"})
	if err != nil {
		return nil, fmt.Errorf("creating units_finished_total: %w", err)
	}

	duration, err := reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "unit_duration_seconds",
		Help: "Wall time of the unit's last execution.",
	}, []string{"unit"})
	if err != nil {
		return nil, fmt.Errorf("creating unit_duration_seconds: %w", err)
	}

	running, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "units_running",
		Help: "Units currently executing.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating units_running: %w", err)
	}

	runDuration, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "run_duration_seconds",
		Help: "Wall time of the last run.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating run_duration_seconds: %w", err)
	}

	return &runMetrics{
		finished:    finished,
		duration:    duration,
		running:     running,
		runDuration: runDuration,
	}, nil
}

func (m *runMetrics) unitFinished(r UnitResult) {
	m.finished.With(prometheus.Labels{"unit": r.Name, "status": r.Status.String()}).Inc()
	if r.Status != Skipped {
		m.duration.With(prometheus.Labels{"unit": r.Name}).Set(r.Elapsed.Seconds())
	}
}
