package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/orchestrator"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				var cfgErr *orchestrator.ConfigurationError
				if errors.As(err, &cfgErr) {
					red := color.New(color.FgRed)
					for _, p := range cfgErr.Problems {
						red.Fprintf(out, "  ✗ %v\n", p)
					}
				}
				return fmt.Errorf("failed to load config: %w", err)
			}

			graph, err := cfg.Graph()
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "Configuration validation successful: %s\n", opts.configPath)
			fmt.Fprintf(out, "  mode: %s, max_parallel: %d\n", cfg.Pipeline.Mode, cfg.Pipeline.MaxParallel)
			fmt.Fprintf(out, "  execution order: %v\n", graph.TopologicalOrder())
			return nil
		},
	}
}
