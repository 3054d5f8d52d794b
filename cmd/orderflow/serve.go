package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nomis52/orderflow/server"
)

type serveOptions struct {
	listen   string
	schedule string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Starts an HTTP server that runs the pipeline on POST /run or on a cron
schedule and exposes status, reports, history and Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var srvOpts []server.Option
			if cmd.Flags().Changed("listen") {
				srvOpts = append(srvOpts, server.WithListenAddr(opts.listen))
			}
			if cmd.Flags().Changed("schedule") {
				srvOpts = append(srvOpts, server.WithCron(opts.schedule))
			}

			srv, err := server.New(root.configPath, srvOpts...)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				srv.Logger().Info("received signal, shutting down")
			}()

			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "Listen address, overrides server.listen")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Cron schedule, overrides server.schedule")
	return cmd
}
