// Package orchestrator runs a small, static graph of named units with
// bounded parallelism.
//
// # Core Concepts
//
// A Unit is one named step of work. Units declare nothing about each other;
// ordering comes from a DependencyGraph built from GraphEntry values:
//
//	graph, err := orchestrator.BuildGraph([]orchestrator.GraphEntry{
//		{Unit: "reader"},
//		{Unit: "validator", DependsOn: []string{"reader"}},
//		{Unit: "responder", DependsOn: []string{"validator"}},
//		{Unit: "creator", DependsOn: []string{"validator"}},
//		{Unit: "summarizer", DependsOn: []string{"responder", "creator"}},
//	})
//
// BuildGraph rejects empty or duplicate names, prerequisites that are not
// units (UnknownDependencyError) and cycles (CircularDependencyError). All
// problems are returned together inside a *ConfigurationError.
//
// # Execution Model
//
// The Coordinator repeatedly asks the ReadySetResolver for units whose
// prerequisites have all completed, and starts them on a worker pool of
// WithMaxParallel workers as long as the ParallelPolicy allows. Units listed
// in a parallel group may run next to each other; every other unit is
// exclusive and only runs on an otherwise idle pool.
//
// Each unit receives an Env holding a read-only view of the SharedStore, a
// logger and a StatusLine for progress reporting. It returns an Outcome.
// Data meant for downstream units goes in Outcome.Publish and is written to
// the store by the StatusMonitor when the unit completes, so every key has
// exactly one writer.
//
// # Unit Lifecycle
//
//	NotStarted -> Running -> Completed | Failed
//	NotStarted -> Skipped                (disabled units)
//
// A unit whose prerequisite failed or was skipped never becomes ready. It
// stays NotStarted and the Report lists its blockers in BlockedBy.
//
// # Error Handling
//
//   - Init errors and bad wiring surface as *ConfigurationError; nothing runs
//   - Outcome.Err, panics and store conflicts mark only that unit Failed
//   - a failed critical unit (WithCritical) stops new submissions; Execute
//     waits for running units and returns an error wrapping ErrRunAborted
//   - context cancellation behaves the same and returns ctx.Err()
//
// Timeouts given with WithTimeouts are advisory and only logged, unless
// WithEnforcedTimeouts is set. Then the unit's context carries a deadline and
// the unit is recorded Failed once it passes; a late Outcome is discarded.
//
// # Observability
//
// Every transition is logged through log/slog. WithTracer adds one span per
// run and per unit, and WithMetrics records unit counts and durations in a
// metrics.Registry.
//
// # Thread Safety
//
// Records, Results and Store may be called from any goroutine while Execute
// runs. Execute itself may only be called once per Coordinator.
package orchestrator
