package logging

import (
	"log/slog"
)

// LoggerHook creates unit-specific loggers by wrapping a base logger.
// The coordinator calls it once per unit so that log capturing stays
// outside the scheduling code.
type LoggerHook interface {
	// LoggerForUnit wraps the base logger for the named unit.
	LoggerForUnit(base *slog.Logger, unit string) *slog.Logger
}

// LoggerHookFunc adapts a function to the LoggerHook interface.
type LoggerHookFunc func(base *slog.Logger, unit string) *slog.Logger

// LoggerForUnit calls f(base, unit).
func (f LoggerHookFunc) LoggerForUnit(base *slog.Logger, unit string) *slog.Logger {
	return f(base, unit)
}

// TaggingLoggerHook adds a "unit" attribute to every record without capturing.
var TaggingLoggerHook LoggerHook = LoggerHookFunc(func(base *slog.Logger, unit string) *slog.Logger {
	return base.With("unit", unit)
})

// CapturingLoggerHook creates loggers that capture records via CapturingHandler.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook that captures all unit logs into collector.
func NewCapturingLoggerHook(collector *LogCollector) *CapturingLoggerHook {
	return &CapturingLoggerHook{
		collector: collector,
	}
}

// Collector returns the collector the hook writes to.
func (h *CapturingLoggerHook) Collector() *LogCollector {
	return h.collector
}

// LoggerForUnit wraps base with a CapturingHandler tagged with the unit name.
func (h *CapturingLoggerHook) LoggerForUnit(base *slog.Logger, unit string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), h.collector, unit)).With("unit", unit)
}
