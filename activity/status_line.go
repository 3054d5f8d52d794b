package activity

import (
	"log/slog"
)

// StatusLine logs status with unit context AND updates the shared handler.
// It is created by the coordinator for each unit and passed in the unit's
// execution environment.
type StatusLine struct {
	logger  *slog.Logger
	handler Handler
	unit    string
}

// NewStatusLine creates a status line bound to a unit name.
// The logger is expected to carry the unit attribute already.
// The handler parameter is optional - if nil, status updates are only logged.
func NewStatusLine(unit string, logger *slog.Logger, handler Handler) *StatusLine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusLine{
		logger:  logger,
		handler: handler,
		unit:    unit,
	}
}

// Unit returns the name of the unit this status line reports for.
func (sl *StatusLine) Unit() string {
	return sl.unit
}

// Set logs the current operation and updates the handler if present.
func (sl *StatusLine) Set(operation string) {
	sl.logger.Info(operation)
	if sl.handler != nil {
		sl.handler.SetOperation(sl.unit, operation)
	}
}

// Progress logs the current operation together with a completion percentage.
// Percentages outside [0, 100] are clamped.
func (sl *StatusLine) Progress(percent float64, operation string) {
	percent = ClampProgress(percent)
	sl.logger.Info(operation, "progress", percent)
	if sl.handler != nil {
		sl.handler.SetProgress(sl.unit, percent, operation)
	}
}
