package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stolostron/qe-intelligence/pkg/config"
	"github.com/stolostron/qe-intelligence/pkg/mcp"
	"github.com/stolostron/qe-intelligence/pkg/orchestrator"
	"github.com/stolostron/qe-intelligence/pkg/runstore"
	"github.com/stolostron/qe-intelligence/pkg/version"
)

// exitCancelled is the conventional exit code for SIGINT-terminated runs.
const exitCancelled = 130

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func newRootCmd() *cobra.Command {
	var configDir string
	var verbose bool

	root := &cobra.Command{
		Use:     "qeintel",
		Short:   "QE Intelligence: test-case generation and pipeline-failure analysis",
		Version: version.Full(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: level})))

			envPath := filepath.Join(configDir, ".env")
			if err := godotenv.Load(envPath); err != nil {
				slog.Debug("No .env file loaded", "path", envPath, "err", err)
			} else {
				slog.Info("Loaded environment", "path", envPath)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configDir, "config-dir",
		envOrDefault("CONFIG_DIR", "."), "configuration directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newGenerateCmd(&configDir),
		newAnalyzeCmd(&configDir),
		newServeCmd(&configDir),
	)
	return root
}

func envOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// buildRuntime assembles the full stack: configuration, MCP integration
// layer, optional run history, orchestrator.
func buildRuntime(ctx context.Context, configDir string) (*orchestrator.Runtime, *mcp.Coordinator, runstore.Store, error) {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing configuration: %w", err)
	}

	coordinator := mcp.NewCoordinator(cfg)

	// Run history is strictly optional: a missing or unreachable database
	// downgrades to the no-op store and the run proceeds.
	var store runstore.Store = runstore.NopStore{}
	storeCfg, err := runstore.ConfigFromEnv()
	switch {
	case err != nil:
		slog.Warn("Run history disabled: invalid database configuration", "err", err)
	case storeCfg.Enabled():
		pg, openErr := runstore.Open(ctx, storeCfg)
		if openErr != nil {
			slog.Warn("Run history disabled: database unavailable", "err", openErr)
		} else {
			store = pg
			slog.Info("Run history enabled")
		}
	}

	return orchestrator.New(cfg, coordinator, store), coordinator, store, nil
}
