// Package workflows holds the pieces shared by pipeline constructors.
// Unlike the orchestrator package, which schedules any set of units,
// this package knows about orderflow configuration.
package workflows

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
	"github.com/nomis52/orderflow/orchestrator"
)

// Params contains common parameters for workflow construction.
type Params struct {
	// Config is the loaded application configuration.
	Config *config.Config

	// Logger is the base logger for the coordinator and its units.
	Logger *slog.Logger

	// LoggerHook wraps the logger for each unit. If nil, units get the base
	// logger tagged with their name.
	LoggerHook logging.LoggerHook

	// Registry receives coordinator metrics. May be nil.
	Registry metrics.Registry

	// Tracer records run and unit spans. May be nil.
	Tracer trace.Tracer

	// RunID overrides the generated run identifier when set.
	RunID string
}

// CoordinatorOptions translates the config and params into coordinator
// options. Every workflow applies these before its own.
func (p Params) CoordinatorOptions() []orchestrator.Option {
	cfg := p.Config
	opts := []orchestrator.Option{
		orchestrator.WithMode(cfg.Pipeline.Mode),
		orchestrator.WithMaxParallel(cfg.Pipeline.MaxParallel),
		orchestrator.WithPollInterval(cfg.Pipeline.PollInterval),
		orchestrator.WithParallelGroups(cfg.Pipeline.ParallelGroups),
		orchestrator.WithPriorities(cfg.Priorities()),
		orchestrator.WithCritical(cfg.CriticalUnits()...),
		orchestrator.WithDisabled(cfg.DisabledUnits()...),
		orchestrator.WithTimeouts(cfg.Timeouts()),
		orchestrator.WithEnforcedTimeouts(cfg.Pipeline.EnforceTimeouts),
	}
	if p.Logger != nil {
		opts = append(opts, orchestrator.WithLogger(p.Logger))
	}
	if p.LoggerHook != nil {
		opts = append(opts, orchestrator.WithLoggerHook(p.LoggerHook))
	}
	if p.Registry != nil {
		opts = append(opts, orchestrator.WithMetrics(p.Registry))
	}
	if p.Tracer != nil {
		opts = append(opts, orchestrator.WithTracer(p.Tracer))
	}
	if p.RunID != "" {
		opts = append(opts, orchestrator.WithRunID(p.RunID))
	}
	return opts
}
