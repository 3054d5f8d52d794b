package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
)

// Coordinator runs the units of a DependencyGraph on a bounded worker pool.
type Coordinator struct {
	graph    *DependencyGraph
	units    map[string]Unit
	resolver *ReadySetResolver
	policy   *ParallelPolicy

	baseLogger      *slog.Logger
	logger          *slog.Logger
	hook            logging.LoggerHook
	maxParallel     int
	pollInterval    time.Duration
	groups          map[string][]string
	priorities      map[string]int
	critical        Set
	disabled        Set
	timeouts        map[string]time.Duration
	enforceTimeouts bool
	registry        metrics.Registry
	metrics         *runMetrics
	tracer          trace.Tracer
	runID           string
	mode            string
	now             func() time.Time

	store   *SharedStore
	monitor *StatusMonitor

	mu       sync.RWMutex
	results  map[string]UnitResult
	executed atomic.Bool
}

// NewCoordinator checks that units match the graph one to one and that the
// options only name known units.
func NewCoordinator(graph *DependencyGraph, units []Unit, opts ...Option) (*Coordinator, error) {
	if graph == nil {
		return nil, NewConfigurationError(errors.New("dependency graph is required"))
	}

	c := &Coordinator{
		graph:        graph,
		units:        make(map[string]Unit, len(units)),
		baseLogger:   slog.Default(),
		hook:         logging.TaggingLoggerHook,
		maxParallel:  DefaultMaxParallel,
		pollInterval: DefaultPollInterval,
		critical:     make(Set),
		disabled:     make(Set),
		registry:     metrics.NopRegistry{},
		tracer:       noop.NewTracerProvider().Tracer(""),
		now:          time.Now,
		store:        NewSharedStore(nil),
		results:      make(map[string]UnitResult, graph.Len()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}
	c.logger = c.baseLogger.With("component", "coordinator", "run_id", c.runID)

	var problems []error
	for _, u := range units {
		if u == nil {
			problems = append(problems, errors.New("nil unit"))
			continue
		}
		name := u.Name()
		if _, dup := c.units[name]; dup {
			problems = append(problems, fmt.Errorf("unit %q registered more than once", name))
			continue
		}
		if !graph.Has(name) {
			problems = append(problems, fmt.Errorf("unit %q is not in the dependency graph", name))
			continue
		}
		c.units[name] = u
	}
	for _, name := range graph.Units() {
		if _, ok := c.units[name]; !ok {
			problems = append(problems, fmt.Errorf("no implementation for unit %q", name))
		}
	}
	problems = append(problems, c.checkNames("parallel group", groupMembers(c.groups))...)
	problems = append(problems, c.checkNames("priority", mapKeys(c.priorities))...)
	problems = append(problems, c.checkNames("critical", c.critical.Sorted())...)
	problems = append(problems, c.checkNames("disabled", c.disabled.Sorted())...)
	problems = append(problems, c.checkNames("timeout", mapKeys(c.timeouts))...)
	if err := NewConfigurationError(problems...); err != nil {
		return nil, err
	}

	m, err := newRunMetrics(c.registry)
	if err != nil {
		return nil, err
	}
	c.metrics = m
	c.resolver = NewReadySetResolver(graph, c.priorities)
	c.policy = NewParallelPolicy(c.groups)
	c.monitor = NewStatusMonitor(graph.Units(), c.store)
	return c, nil
}

func (c *Coordinator) checkNames(what string, names []string) []error {
	var problems []error
	for _, n := range names {
		if !c.graph.Has(n) {
			problems = append(problems, fmt.Errorf("%s references unknown unit %q", what, n))
		}
	}
	return problems
}

// RunID returns the identifier of this run.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Records returns a snapshot of every unit's MonitoringRecord.
func (c *Coordinator) Records() map[string]MonitoringRecord {
	return c.monitor.Records()
}

// Results returns a snapshot of the results recorded so far.
func (c *Coordinator) Results() map[string]UnitResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]UnitResult, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// Store returns the run's shared store.
func (c *Coordinator) Store() StoreReader {
	return c.store
}

func (c *Coordinator) setResult(r UnitResult) {
	c.mu.Lock()
	c.results[r.Name] = r
	c.mu.Unlock()
	c.metrics.unitFinished(r)
}

// completion is sent by a worker when Execute returns.
type completion struct {
	name    string
	outcome Outcome
	panic   error
	ended   time.Time
}

// inflight tracks a submitted unit until its result is recorded.
type inflight struct {
	started time.Time
	cancel  context.CancelFunc
	span    trace.Span
	warned  bool
}

// runState is owned by the Execute goroutine.
type runState struct {
	pool     errgroup.Group
	done     chan completion
	inflight map[string]*inflight
	// busy counts live worker goroutines, including timed-out ones that
	// have not returned yet.
	busy int
	// timedOut holds units failed by an enforced timeout whose Execute has
	// not returned. They still occupy the pool for the parallel policy.
	timedOut Set
	stopErr  error
}

// Execute runs the pipeline once. It returns the final Report together with
// a *ConfigurationError when a unit fails Init, an error wrapping
// ErrRunAborted when a critical unit fails, or ctx.Err() on cancellation.
// Other unit failures only show in the Report.
func (c *Coordinator) Execute(ctx context.Context) (*Report, error) {
	if !c.executed.CompareAndSwap(false, true) {
		return nil, errors.New("coordinator already executed")
	}

	startedAt := c.now()
	ctx, span := c.tracer.Start(ctx, "orderflow.run",
		trace.WithAttributes(
			attribute.String("run.id", c.runID),
			attribute.String("run.mode", c.mode),
			attribute.Int("run.unit_count", c.graph.Len()),
			attribute.Int("run.max_parallel", c.maxParallel),
		),
	)
	defer span.End()

	c.logger.Info("starting run", "units", c.graph.Len(), "max_parallel", c.maxParallel, "mode", c.mode)

	if err := c.initUnits(); err != nil {
		c.logger.Error("unit initialization failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialization failed")
		return c.finalize(startedAt, err), err
	}

	for _, name := range c.graph.Units() {
		if !c.disabled.Has(name) {
			continue
		}
		if err := c.monitor.Update(name, Skipped); err != nil {
			c.logger.Error("marking unit skipped", "unit", name, "error", err)
			continue
		}
		c.setResult(UnitResult{Name: name, Status: Skipped})
		c.logger.Info("unit skipped", "unit", name, "reason", "disabled")
	}

	st := &runState{
		done:     make(chan completion, c.graph.Len()),
		inflight: make(map[string]*inflight),
		timedOut: make(Set),
	}
	st.pool.SetLimit(c.maxParallel)
	c.loop(ctx, st)

	if st.busy == 0 {
		_ = st.pool.Wait()
	}

	rep := c.finalize(startedAt, st.stopErr)
	c.metrics.runDuration.Set(rep.ElapsedSeconds)
	span.SetAttributes(
		attribute.String("run.outcome", string(rep.Outcome)),
		attribute.Int("run.completed", rep.Completed),
		attribute.Int("run.failed", rep.Failed),
	)
	if st.stopErr != nil {
		span.RecordError(st.stopErr)
		span.SetStatus(codes.Error, st.stopErr.Error())
	}
	c.logger.Info("run finished",
		"outcome", rep.Outcome,
		"completed", rep.Completed,
		"failed", rep.Failed,
		"skipped", rep.Skipped,
		"not_started", rep.NotStarted,
		"duration", time.Duration(rep.ElapsedSeconds*float64(time.Second)),
	)
	return rep, st.stopErr
}

func (c *Coordinator) initUnits() error {
	var problems []error
	for _, name := range c.graph.Units() {
		if c.disabled.Has(name) {
			continue
		}
		if err := c.units[name].Init(); err != nil {
			problems = append(problems, fmt.Errorf("initializing unit %q: %w", name, err))
		}
	}
	return NewConfigurationError(problems...)
}

// loop submits ready units and waits for completions until nothing is
// running and nothing can start.
func (c *Coordinator) loop(ctx context.Context, st *runState) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	ctxDone := ctx.Done()

	for {
		if st.stopErr == nil && ctx.Err() != nil {
			st.stopErr = ctx.Err()
		}
		waiting := false
		if st.stopErr == nil {
			waiting = c.submitReady(ctx, st)
		}
		// a timed out unit may still hold a worker that ready units need
		if len(st.inflight) == 0 && !(waiting && st.busy > 0) {
			return
		}

		select {
		case comp := <-st.done:
			c.handleCompletion(st, comp)
		case <-ticker.C:
			c.checkRunning(st)
		case <-ctxDone:
			ctxDone = nil
			if st.stopErr == nil {
				st.stopErr = ctx.Err()
				c.logger.Warn("run cancelled, waiting for running units", "running", len(st.inflight), "error", ctx.Err())
			}
		}
	}
}

// submitReady starts ready units while the pool has room and the parallel
// policy allows them next to what is already running. It reports whether
// any ready unit had to wait.
func (c *Coordinator) submitReady(ctx context.Context, st *runState) bool {
	sets := c.monitor.Sets()
	blocked := sets.Failed.Clone()
	for name := range sets.Skipped {
		blocked.Add(name)
	}
	running := sets.Running
	for name := range st.timedOut {
		running.Add(name)
	}

	waiting := false
	for _, name := range c.resolver.Ready(sets.Completed, blocked, running) {
		if st.busy >= c.maxParallel {
			return true
		}
		if !c.policy.CanRunConcurrently(name, running) {
			c.logger.Debug("unit waiting for exclusive slot", "unit", name, "running", running.Sorted())
			waiting = true
			continue
		}
		if err := c.start(ctx, st, name); err != nil {
			c.logger.Error("failed to start unit", "unit", name, "error", err)
			continue
		}
		running.Add(name)
	}
	return waiting
}

// start marks name Running and hands it to the worker pool.
func (c *Coordinator) start(ctx context.Context, st *runState, name string) error {
	started := c.now()
	if err := c.monitor.Update(name, Running, WithStartTime(started), WithProgress(0), WithOperation("starting")); err != nil {
		return err
	}

	var unitCtx context.Context
	var cancel context.CancelFunc
	if timeout := c.timeouts[name]; c.enforceTimeouts && timeout > 0 {
		unitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		unitCtx, cancel = context.WithCancel(ctx)
	}
	unitCtx, span := c.tracer.Start(unitCtx, "orderflow.unit",
		trace.WithAttributes(
			attribute.String("unit.name", name),
			attribute.Bool("unit.critical", c.critical.Has(name)),
			attribute.Bool("unit.parallel", c.policy.IsParallelCapable(name)),
		),
	)

	logger := c.hook.LoggerForUnit(c.baseLogger, name)
	env := Env{
		Store:  c.store,
		Logger: logger,
		Status: activity.NewStatusLine(name, logger, c.monitor),
	}

	st.inflight[name] = &inflight{started: started, cancel: cancel, span: span}
	st.busy++
	c.metrics.running.Set(float64(len(st.inflight)))
	c.logger.Info("unit started", "unit", name, "running", len(st.inflight))

	unit := c.units[name]
	done := st.done
	st.pool.Go(func() error {
		comp := completion{name: name}
		func() {
			defer func() {
				if r := recover(); r != nil {
					comp.panic = fmt.Errorf("panic: %v", r)
				}
			}()
			comp.outcome = unit.Execute(unitCtx, env)
		}()
		comp.ended = c.now()
		done <- comp
		return nil
	})
	return nil
}

func (c *Coordinator) handleCompletion(st *runState, comp completion) {
	st.busy--
	fl, ok := st.inflight[comp.name]
	if !ok {
		st.timedOut.Remove(comp.name)
		c.logger.Warn("ignoring late outcome of timed out unit", "unit", comp.name)
		return
	}
	delete(st.inflight, comp.name)
	fl.cancel()

	result := UnitResult{
		Name:      comp.name,
		Status:    Completed,
		StartedAt: fl.started,
		EndedAt:   comp.ended,
		Elapsed:   comp.ended.Sub(fl.started),
		Payload:   comp.outcome.Payload,
		Outputs:   comp.outcome.Outputs,
	}
	var publish map[string]any
	switch {
	case comp.panic != nil:
		result.Status = Failed
		result.Error = comp.panic.Error()
	case comp.outcome.Err != nil:
		result.Status = Failed
		result.Error = comp.outcome.Err.Error()
	default:
		publish = comp.outcome.Publish
	}

	if err := c.monitor.Finish(result, publish); err != nil {
		c.logger.Error("recording unit result", "unit", comp.name, "error", err)
		result.Status = Failed
		result.Error = fmt.Sprintf("recording result: %v", err)
		if err := c.monitor.Finish(result, nil); err != nil {
			c.logger.Error("marking unit failed", "unit", comp.name, "error", err)
		}
	}
	c.record(st, fl, result)
}

// checkRunning refreshes heartbeats and applies timeouts.
func (c *Coordinator) checkRunning(st *runState) {
	now := c.now()
	for name, fl := range st.inflight {
		c.monitor.Heartbeat(name)

		timeout := c.timeouts[name]
		if timeout <= 0 || now.Sub(fl.started) < timeout {
			continue
		}
		if !c.enforceTimeouts {
			if !fl.warned {
				fl.warned = true
				c.logger.Warn("unit exceeded its timeout", "unit", name, "timeout", timeout, "elapsed", now.Sub(fl.started))
			}
			continue
		}

		delete(st.inflight, name)
		st.timedOut.Add(name)
		fl.cancel()
		result := UnitResult{
			Name:      name,
			Status:    Failed,
			StartedAt: fl.started,
			EndedAt:   now,
			Elapsed:   now.Sub(fl.started),
			Error:     fmt.Sprintf("timed out after %s", timeout),
		}
		if err := c.monitor.Finish(result, nil); err != nil {
			c.logger.Error("marking unit timed out", "unit", name, "error", err)
		}
		c.record(st, fl, result)
	}
}

// record stores a terminal result and applies the critical-unit policy.
func (c *Coordinator) record(st *runState, fl *inflight, result UnitResult) {
	c.setResult(result)
	c.metrics.running.Set(float64(len(st.inflight)))

	fl.span.SetAttributes(attribute.String("unit.status", result.Status.String()))
	if result.Status == Failed {
		fl.span.RecordError(&UnitExecutionError{Unit: result.Name, Err: errors.New(result.Error)})
		fl.span.SetStatus(codes.Error, result.Error)
	} else {
		fl.span.SetStatus(codes.Ok, "")
	}
	fl.span.End()

	if result.Status != Failed {
		c.logger.Info("unit completed", "unit", result.Name, "duration", result.Elapsed, "outputs", len(result.Outputs))
		return
	}
	c.logger.Error("unit failed", "unit", result.Name, "duration", result.Elapsed, "error", result.Error)
	if c.critical.Has(result.Name) && st.stopErr == nil {
		st.stopErr = fmt.Errorf("%w: critical unit %q failed: %s", ErrRunAborted, result.Name, result.Error)
		c.logger.Error("aborting run", "unit", result.Name, "running", len(st.inflight))
	}
}

func (c *Coordinator) finalize(startedAt time.Time, err error) *Report {
	sets := c.monitor.Sets()
	rep := Finalize(FinalizeInput{
		RunID:     c.runID,
		Mode:      c.mode,
		Graph:     c.graph,
		Results:   c.Results(),
		Blocked:   c.resolver.Blocked(sets.Failed, sets.Skipped),
		StartedAt: startedAt,
		EndedAt:   c.now(),
		Err:       err,
	})
	return &rep
}

func groupMembers(groups map[string][]string) []string {
	var out []string
	for _, members := range groups {
		out = append(out, members...)
	}
	return out
}

func mapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
