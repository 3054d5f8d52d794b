package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeRegistry implements Registry for scrape-based metrics collection.
// Metrics are registered with a Prometheus registry and exposed via HTTP.
type ScrapeRegistry struct {
	prom      *prometheus.Registry
	startTime time.Time
}

// NewScrapeRegistry creates a new ScrapeRegistry.
func NewScrapeRegistry() (*ScrapeRegistry, error) {
	reg := prometheus.NewRegistry()

	// Register standard Go collectors
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("registering go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("registering process collector: %w", err)
	}

	return &ScrapeRegistry{
		prom:      reg,
		startTime: time.Now(),
	}, nil
}

// Handler returns an http.Handler for the /metrics endpoint.
func (r *ScrapeRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying Prometheus registry for inspection.
func (r *ScrapeRegistry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// Uptime returns how long the registry has existed.
func (r *ScrapeRegistry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// NewGauge creates and registers a new Gauge.
func (r *ScrapeRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	g, err := register(r.prom, prometheus.NewGauge(opts), opts.Name)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// NewGaugeVec creates and registers a new GaugeVec.
func (r *ScrapeRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	g, err := register(r.prom, prometheus.NewGaugeVec(opts, labels), opts.Name)
	if err != nil {
		return nil, err
	}
	return &scrapeGaugeVec{vec: g}, nil
}

// NewCounter creates and registers a new Counter.
func (r *ScrapeRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	c, err := register(r.prom, prometheus.NewCounter(opts), opts.Name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewCounterVec creates and registers a new CounterVec.
func (r *ScrapeRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	c, err := register(r.prom, prometheus.NewCounterVec(opts, labels), opts.Name)
	if err != nil {
		return nil, err
	}
	return &scrapeCounterVec{vec: c}, nil
}

// register adds a collector, reusing an identical one registered earlier so
// that consecutive runs in one process share their series.
func register[T prometheus.Collector](reg *prometheus.Registry, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("registering %q: %w", name, err)
	}
	return c, nil
}

// scrapeGaugeVec adapts prometheus.GaugeVec to the GaugeVec interface.
type scrapeGaugeVec struct {
	vec *prometheus.GaugeVec
}

func (g *scrapeGaugeVec) With(labels prometheus.Labels) Gauge {
	return g.vec.With(labels)
}

// scrapeCounterVec adapts prometheus.CounterVec to the CounterVec interface.
type scrapeCounterVec struct {
	vec *prometheus.CounterVec
}

func (c *scrapeCounterVec) With(labels prometheus.Labels) Counter {
	return c.vec.With(labels)
}
