// Package server provides an HTTP server that runs the orderflow pipeline
// on demand or on a cron schedule.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - GET /api/status - Run state, live unit records and next scheduled run
//   - GET /api/report - Report of the last finished run
//   - GET /config - Returns current configuration as YAML
//   - POST /reload - Reloads configuration from disk
//   - POST /run - Triggers a pipeline run
//   - GET /history - Returns history of completed runs
//   - GET /history/logs?id= - Returns the stored report and unit logs of a run
//   - POST /history/reload - Re-reads history from disk (disk store only)
//   - GET /metrics - Prometheus metrics
//
// # Architecture
//
// The config is swapped atomically on reload. Each run builds a fresh
// coordinator from the config current at its start, so changes take effect
// on the next run without disturbing one in progress. Logging, history and
// the schedule are fixed when the server is created.
//
// # Example
//
//	srv, err := server.New("/etc/orderflow/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nomis52/orderflow/buildinfo"
	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
	"github.com/nomis52/orderflow/orchestrator"
	"github.com/nomis52/orderflow/server/cron"
	"github.com/nomis52/orderflow/server/handlers"
	"github.com/nomis52/orderflow/server/runner"
	"github.com/nomis52/orderflow/server/types"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Server is the HTTP server for orderflow.
type Server struct {
	addr        string
	configPath  string
	logger      *logging.Logger
	config      atomic.Pointer[config.Config]
	store       runner.StateStore
	metrics     *metrics.ScrapeRegistry
	tracer      trace.Tracer
	httpServer  *http.Server
	runner      *runner.Runner
	cronTrigger *cron.CronTrigger
	properties  types.ServerProperties
	schedule    string
	runnerOpts  []runner.Option
}

// Option configures a Server.
type Option func(*Server) error

// WithListenAddr overrides server.listen from the config.
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithCron overrides server.schedule from the config. An empty spec
// disables scheduled runs.
func WithCron(spec string) Option {
	return func(s *Server) error {
		s.schedule = spec
		return nil
	}
}

// WithTracer records run and unit spans with tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) error {
		s.tracer = tracer
		return nil
	}
}

// WithRunnerOptions passes extra options to the runner.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(s *Server) error {
		s.runnerOpts = append(s.runnerOpts, opts...)
		return nil
	}
}

// New creates a new Server with the given config path and options.
// It loads the configuration and initializes all dependencies.
func New(configPath string, opts ...Option) (*Server, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	scrape, err := metrics.NewScrapeRegistry()
	if err != nil {
		logger.Close()
		return nil, err
	}

	store, err := runner.NewStore(cfg.Server.History, logger.Logger)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	hostname, _ := os.Hostname()
	s := &Server{
		addr:       cfg.Server.Listen,
		configPath: configPath,
		logger:     logger,
		store:      store,
		schedule:   cfg.Server.Schedule,
		metrics:    scrape,
		properties: types.ServerProperties{
			Build:      buildinfo.Get(),
			StartedAt:  time.Now(),
			Hostname:   hostname,
			ConfigPath: configPath,
		},
	}
	s.config.Store(&cfg)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Close()
			return nil, err
		}
	}

	runnerOpts := append([]runner.Option{
		runner.WithStateStore(store),
		runner.WithMetricsRegistry(s.metrics),
	}, s.runnerOpts...)
	if s.tracer != nil {
		runnerOpts = append(runnerOpts, runner.WithTracer(s.tracer))
	}
	s.runner = runner.New(logger.Logger, s, runnerOpts...)
	if s.schedule != "" {
		trigger, err := cron.NewCronTrigger(s.schedule, s.runner, logger.Logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating cron trigger: %w", err)
		}
		s.cronTrigger = trigger
	}

	return s, nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger.Logger
}

// SetLogLevel changes the server's log level at runtime.
func (s *Server) SetLogLevel(level slog.Level) {
	s.logger.SetLevel(level)
}

// Reload reads the config from disk. A config that fails to load or
// validate leaves the current one in place.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		s.logger.SetLevel(level)
	}
	s.config.Store(&cfg)
	s.logger.Info("configuration loaded", "config_path", s.configPath)
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.config.Load()
}

// Properties returns metadata about this server instance.
func (s *Server) Properties() types.ServerProperties {
	return s.properties
}

// NextRun returns the next scheduled run time, or nil if no cron is configured.
func (s *Server) NextRun() *time.Time {
	if s.cronTrigger == nil {
		return nil
	}
	next := s.cronTrigger.NextRun()
	return &next
}

// Status returns the current run status by delegating to the runner.
func (s *Server) Status() runner.RunStatus {
	return s.runner.Status()
}

// LastReport returns the last finished report by delegating to the runner.
func (s *Server) LastReport() *orchestrator.Report {
	return s.runner.LastReport()
}

// Handler returns the server's routes. Run uses it; tests can serve it
// with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done, cancelling and
// waiting for any run in progress.
// If a cron trigger is configured, it will be started automatically.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	if s.cronTrigger != nil {
		s.logger.Info("starting cron trigger",
			"schedule", s.cronTrigger.Spec(),
			"next_run", s.cronTrigger.NextRun(),
		)
		s.cronTrigger.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"config_path", s.configPath,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		s.runner.Cancel()
		s.runner.Wait()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Close releases the history store and the log file, if any.
func (s *Server) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		c.Close()
	}
	return s.logger.Close()
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /health", handlers.NewHealthHandler(s))
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s))
	mux.Handle("GET /api/report", handlers.NewReportHandler(s))
	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger.Logger, "configuration", s))
	mux.Handle("POST /run", handlers.NewRunHandler(s.runner))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.runner))
	mux.Handle("GET /history/logs", handlers.NewHistoryLogsHandler(s.runner))
	if reloadable, ok := s.store.(handlers.Reloader); ok {
		mux.Handle("POST /history/reload", handlers.NewReloadHandler(s.logger.Logger, "run history", reloadable))
	}
	mux.Handle("GET /metrics", s.metrics.Handler())
}
