// Package handlers provides HTTP handlers for the orderflow server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"time"

	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/orchestrator"
	"github.com/nomis52/orderflow/server/runner"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// PipelineRunner can start pipeline runs.
type PipelineRunner interface {
	Run(trigger string) (string, error)
}

// RunStatusProvider provides access to run status.
type RunStatusProvider interface {
	Status() runner.RunStatus
}

// NextRunProvider reports the next scheduled run, or nil without a schedule.
type NextRunProvider interface {
	NextRun() *time.Time
}

// HistoryProvider provides access to run history.
type HistoryProvider interface {
	History() []runner.RunSummary
	Get(id string) (runner.RunRecord, bool)
}

// ReportProvider provides the report of the last finished run.
type ReportProvider interface {
	LastReport() *orchestrator.Report
}
