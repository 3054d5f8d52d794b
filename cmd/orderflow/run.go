package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
	"github.com/nomis52/orderflow/orchestrator"
	"github.com/nomis52/orderflow/workflows"
	"github.com/nomis52/orderflow/workflows/orders"
)

const (
	reportFile       = "run_report.json"
	pushFlushTimeout = 10 * time.Second
)

type runOptions struct {
	maxParallel int
	mode        string
	outputDir   string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Runs the pipeline once, writes run_report.json to the output directory
and prints a summary. Exits non-zero unless every unit completed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, cmd, &cfg)
		},
	}
	cmd.Flags().IntVar(&opts.maxParallel, "max-parallel", 0, "Maximum units running at once, overrides pipeline.max_parallel")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Execution mode (sequential|coordinated), overrides pipeline.mode")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Output directory, overrides data.output_dir")
	return cmd
}

// apply copies changed flags into cfg and revalidates it.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := false
	if flags.Changed("mode") {
		if cfg.Pipeline.Mode == config.ModeSequential && o.mode != config.ModeSequential {
			// sequential mode pinned max_parallel to 1
			cfg.Pipeline.MaxParallel = 0
		}
		cfg.Pipeline.Mode = o.mode
		changed = true
	}
	if flags.Changed("max-parallel") {
		cfg.Pipeline.MaxParallel = o.maxParallel
		changed = true
	}
	if flags.Changed("output-dir") {
		cfg.Data.OutputDir = o.outputDir
		changed = true
	}
	if !changed {
		return nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	var registry metrics.Registry = metrics.NopRegistry{}
	var push *metrics.PushRegistry
	if cfg.Monitoring.PushURL != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		push = metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.Monitoring.PushURL,
			Prefix:   cfg.Monitoring.MetricsPrefix,
			Job:      cfg.Monitoring.JobName,
			Instance: hostname,
		})
		registry = push
	}

	coord, err := orders.NewWorkflow(workflows.Params{
		Config:   cfg,
		Logger:   logger.Logger,
		Registry: registry,
	})
	if err != nil {
		return err
	}

	rep, runErr := coord.Execute(ctx)
	if rep != nil {
		path, err := writeReport(cfg.Data.OutputDir, rep)
		if err != nil {
			logger.Error("writing run report", "error", err)
		} else {
			logger.Info("run report written", "path", path)
		}
		printSummary(cmd.OutOrStdout(), rep)
	}

	if push != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), pushFlushTimeout)
		if err := push.Flush(flushCtx); err != nil {
			logger.Warn("failed to push metrics", "error", err, "pending", push.Pending())
		}
		cancel()
	}

	if runErr != nil {
		return runErr
	}
	if !rep.Succeeded() {
		return fmt.Errorf("run %s finished %s", rep.RunID, rep.Outcome)
	}
	return nil
}

// writeReport writes rep as indented JSON under dir.
func writeReport(dir string, rep *orchestrator.Report) (string, error) {
	if dir == "" {
		return "", errors.New("no output directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run report: %w", err)
	}
	path := filepath.Join(dir, reportFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing run report: %w", err)
	}
	return path, nil
}
