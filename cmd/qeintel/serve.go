package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stolostron/qe-intelligence/pkg/api"
)

func newServeCmd(configDir *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run state, health, and MCP metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runtime, coordinator, store, err := buildRuntime(ctx, *configDir)
			if err != nil {
				return err
			}
			defer func() {
				_ = coordinator.Close()
				_ = store.Close()
			}()

			server := api.NewServer(runtime, coordinator, store)
			if err := server.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":"+envOrDefault("HTTP_PORT", "8080"),
		"listen address")
	return cmd
}
