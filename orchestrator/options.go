package orchestrator

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
)

const (
	// DefaultMaxParallel is the worker pool size when none is configured.
	DefaultMaxParallel = 2
	// DefaultPollInterval is how often heartbeats and timeouts are checked.
	DefaultPollInterval = 500 * time.Millisecond
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger for the coordinator
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.baseLogger = logger
	}
}

// WithLoggerHook sets the hook used to derive per-unit loggers.
func WithLoggerHook(hook logging.LoggerHook) Option {
	return func(c *Coordinator) {
		c.hook = hook
	}
}

// WithMaxParallel bounds how many units run at once. Values below 1 are ignored.
func WithMaxParallel(n int) Option {
	return func(c *Coordinator) {
		if n >= 1 {
			c.maxParallel = n
		}
	}
}

// WithPollInterval sets how often running units are checked.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithParallelGroups declares the groups of parallel-capable units.
func WithParallelGroups(groups map[string][]string) Option {
	return func(c *Coordinator) {
		c.groups = groups
	}
}

// WithPriorities sets per-unit priorities; higher runs first among ready units.
func WithPriorities(priorities map[string]int) Option {
	return func(c *Coordinator) {
		c.priorities = priorities
	}
}

// WithCritical marks units whose failure aborts the run.
func WithCritical(names ...string) Option {
	return func(c *Coordinator) {
		c.critical = NewSet(names...)
	}
}

// WithDisabled marks units that are skipped without running.
func WithDisabled(names ...string) Option {
	return func(c *Coordinator) {
		c.disabled = NewSet(names...)
	}
}

// WithTimeouts sets per-unit timeouts. They only produce warnings unless
// WithEnforcedTimeouts(true) is also given.
func WithTimeouts(timeouts map[string]time.Duration) Option {
	return func(c *Coordinator) {
		c.timeouts = timeouts
	}
}

// WithEnforcedTimeouts makes timeouts fail the unit and cancel its context.
func WithEnforcedTimeouts(enforce bool) Option {
	return func(c *Coordinator) {
		c.enforceTimeouts = enforce
	}
}

// WithMetrics records run metrics in reg.
func WithMetrics(reg metrics.Registry) Option {
	return func(c *Coordinator) {
		c.registry = reg
	}
}

// WithTracer enables OpenTelemetry spans for the run and each unit.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithRunID sets the run identifier used in logs, spans and the report.
func WithRunID(id string) Option {
	return func(c *Coordinator) {
		c.runID = id
	}
}

// WithMode labels the report with the execution mode.
func WithMode(mode string) Option {
	return func(c *Coordinator) {
		c.mode = mode
	}
}
