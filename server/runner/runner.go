// Package runner manages pipeline run execution for the orderflow server.
//
// The runner handles:
//   - Starting order pipeline runs in the background
//   - Preventing concurrent runs
//   - Exposing live unit records while a run is in progress
//   - Maintaining history of completed runs and their captured logs
//
// Each run builds a fresh coordinator from the current configuration,
// so config changes take effect on the next run.
//
// # Example
//
//	r := runner.New(logger, configProvider)
//
//	id, err := r.Run(runner.TriggerManual)
//	if errors.Is(err, runner.ErrRunInProgress) {
//	    // Handle concurrent run attempt
//	}
//
//	status := r.Status()
//	for name, rec := range status.Units {
//	    fmt.Printf("%s [%s]: %s\n", name, rec.Status, rec.Operation)
//	}
//
//	history := r.History() // Most recent first
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
	"github.com/nomis52/orderflow/orchestrator"
	"github.com/nomis52/orderflow/workflows"
	"github.com/nomis52/orderflow/workflows/orders"
)

// ErrRunInProgress is returned when attempting to start a run while one is already running.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// ErrNoConfig is returned when no configuration has been loaded.
var ErrNoConfig = errors.New("no configuration available")

// Runner manages pipeline run execution.
type Runner struct {
	baseLogger     *slog.Logger
	logger         *slog.Logger
	configProvider ConfigProvider
	store          StateStore
	registry       metrics.Registry
	tracer         trace.Tracer
	workflowOpts   []orders.WorkflowOption
	baseCtx        context.Context
	maxLogEntries  int

	wg sync.WaitGroup

	mu          sync.Mutex
	runStatus   RunStatus
	cancel      context.CancelFunc
	coordinator *orchestrator.Coordinator // current or last run
	lastReport  *orchestrator.Report
}

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for persistence.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithMetricsRegistry sets the registry that receives coordinator metrics.
func WithMetricsRegistry(reg metrics.Registry) Option {
	return func(r *Runner) {
		r.registry = reg
	}
}

// WithTracer sets the tracer handed to each run's coordinator.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithWorkflowOptions passes options to every workflow the runner builds.
func WithWorkflowOptions(opts ...orders.WorkflowOption) Option {
	return func(r *Runner) {
		r.workflowOpts = append(r.workflowOpts, opts...)
	}
}

// WithBaseContext sets the parent context of every run. Cancelling it
// cancels the current run.
func WithBaseContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.baseCtx = ctx
	}
}

// WithMaxLogEntries caps the log entries a history record keeps per unit.
// Zero or less keeps everything.
func WithMaxLogEntries(n int) Option {
	return func(r *Runner) {
		r.maxLogEntries = n
	}
}

// New creates a new Runner.
func New(logger *slog.Logger, provider ConfigProvider, opts ...Option) *Runner {
	r := &Runner{
		baseLogger:     logger,
		logger:         logger.With("component", "runner"),
		configProvider: provider,
		store:          NewMemoryStore(0),
		baseCtx:        context.Background(),
		maxLogEntries:  logging.DefaultMaxEntriesPerUnit,
		runStatus:      RunStatus{State: RunStateIdle},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run starts a pipeline run in the background and returns its ID.
// Returns ErrRunInProgress if a run is already in progress.
func (r *Runner) Run(trigger string) (string, error) {
	cfg := r.configProvider.Config()
	if cfg == nil {
		return "", ErrNoConfig
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(r.baseCtx)
	if !r.tryStart(id, trigger, cancel) {
		cancel()
		return "", ErrRunInProgress
	}

	r.logger.Info("starting pipeline run", "run_id", id, "trigger", trigger)

	collector := logging.NewLogCollector(logging.WithMaxEntriesPerUnit(r.maxLogEntries))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		report, err := r.executeRun(ctx, cfg, id, collector)
		r.finish(report, err, collector)
	}()

	return id, nil
}

// Cancel cancels the run in progress, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Wait blocks until the run in progress, if any, has been recorded.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Status returns the current run status. While running it includes the
// live unit records.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.runStatus
	if status.State == RunStateRunning && r.coordinator != nil {
		status.Units = r.coordinator.Records()
	}
	return status
}

// IsRunning returns true if a run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runStatus.State == RunStateRunning
}

// LastReport returns the report of the last finished run, or nil.
func (r *Runner) LastReport() *orchestrator.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReport
}

// History returns the history of completed runs, most recent first.
func (r *Runner) History() []RunSummary {
	return r.store.History()
}

// Get returns a stored run with its report and captured logs.
func (r *Runner) Get(id string) (RunRecord, bool) {
	return r.store.Get(id)
}

// tryStart attempts to transition from idle to running.
// Returns true if successful, false if already running.
func (r *Runner) tryStart(id, trigger string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runStatus.State == RunStateRunning {
		return false
	}

	now := time.Now()
	r.runStatus = RunStatus{
		State:     RunStateRunning,
		RunID:     id,
		Trigger:   trigger,
		StartedAt: &now,
	}
	r.cancel = cancel
	r.coordinator = nil
	return true
}

// finish transitions from running to idle and records the result.
func (r *Runner) finish(report *orchestrator.Report, err error, collector *logging.LogCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	endTime := time.Now()
	duration := endTime.Sub(*r.runStatus.StartedAt)

	r.runStatus.State = RunStateIdle
	r.runStatus.EndedAt = &endTime
	r.runStatus.Error = ""
	r.runStatus.Outcome = ""
	r.cancel = nil

	if report != nil {
		r.runStatus.Outcome = report.Outcome
		r.lastReport = report
	}
	if r.coordinator != nil {
		r.runStatus.Units = r.coordinator.Records()
	}

	if err != nil {
		r.runStatus.Error = err.Error()
		r.logger.Error("pipeline run failed", "run_id", r.runStatus.RunID, "error", err, "duration", duration)
	} else {
		r.logger.Info("pipeline run completed", "run_id", r.runStatus.RunID,
			"outcome", r.runStatus.Outcome, "duration", duration)
	}

	record := RunRecord{
		RunSummary: RunSummary{
			ID:        r.runStatus.RunID,
			Trigger:   r.runStatus.Trigger,
			StartedAt: r.runStatus.StartedAt,
			EndedAt:   r.runStatus.EndedAt,
			Outcome:   r.runStatus.Outcome,
			Error:     r.runStatus.Error,
		},
		Report:      report,
		Logs:        collector.GetAllLogs(),
		DroppedLogs: collector.Dropped(),
	}
	if len(record.DroppedLogs) > 0 {
		r.logger.Warn("run logs truncated", "run_id", record.ID, "dropped", record.DroppedLogs)
	}
	if err := r.store.Save(record); err != nil {
		r.logger.Error("failed to save run to store", "error", err)
	}
}

func (r *Runner) executeRun(ctx context.Context, cfg *config.Config, id string, collector *logging.LogCollector) (*orchestrator.Report, error) {
	params := workflows.Params{
		Config:     cfg,
		Logger:     r.baseLogger,
		LoggerHook: logging.NewCapturingLoggerHook(collector),
		Registry:   r.registry,
		Tracer:     r.tracer,
		RunID:      id,
	}

	c, err := orders.NewWorkflow(params, r.workflowOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create order workflow: %w", err)
	}

	r.mu.Lock()
	r.coordinator = c
	r.mu.Unlock()

	return c.Execute(ctx)
}
