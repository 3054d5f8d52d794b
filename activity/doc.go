// Package activity provides unit-scoped status reporting for pipeline units.
//
// A unit reports what it is doing through a StatusLine: a free-text
// "current operation" plus an optional progress percentage. Every update is
// logged and forwarded to a Handler, which in a pipeline run is the
// coordinator's status monitor.
//
// # Architecture
//
// The package follows the handler/writer pattern of log/slog:
//
//   - StatusLine: writes status updates (analogous to slog.Logger)
//   - Handler: receives and stores them (analogous to slog.Handler)
//
// StatusHandler is a small in-memory Handler, useful when a unit runs outside
// a coordinator (tests, one-off tools).
//
// # Usage
//
//	func (u *Validator) Execute(ctx context.Context, env orchestrator.Env) orchestrator.Outcome {
//	    env.Status.Set("loading reference prices")
//	    // ... work
//	    env.Status.Progress(50, "validated 120/240 lines")
//	    // ... more work
//	}
//
// # Error Capturing
//
// CaptureError runs a function and, if it fails, publishes the error as the
// unit's current operation:
//
//	err := activity.CaptureError(env.Status, func() error {
//	    return loadCatalog(path)
//	})
package activity
