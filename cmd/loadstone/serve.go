package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loadstone-dev/loadstone/app/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `serve runs the HTTP companion for local frontends. The process serves
until it receives SIGINT or SIGTERM, watching each game's overrides file so
curator edits apply without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	engine, store, err := newEngine()
	if err != nil {
		return err
	}

	// Serving has no deadline: the process runs until a signal arrives.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.WatchOverrides(ctx); err != nil {
		return err
	}
	return server.New(engine, logger).ListenAndServe(ctx, serveAddr)
}
