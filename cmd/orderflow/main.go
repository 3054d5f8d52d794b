// Command orderflow runs the purchase-order pipeline once, validates a
// configuration or serves the pipeline over HTTP.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "orderflow",
		Short: "Purchase-order processing pipeline",
		Long: `orderflow reads purchase orders from CSV, validates them against a
reference price list, emails customers about exceptions, creates sales
orders for valid purchase orders and writes a summary.

The five steps run as units of a dependency graph on a bounded worker pool.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to config file")

	cmd.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}
