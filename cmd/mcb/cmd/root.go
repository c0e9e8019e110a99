// Package cmd implements the mcb command-line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marlonsc/mcb/internal/config"
	"github.com/marlonsc/mcb/internal/logging"
	"github.com/marlonsc/mcb/internal/registry"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mcb",
	Short: "Code-and-memory knowledge service",
	Long: `mcb indexes a codebase and a stream of agent observations into a
hybrid lexical+semantic store and answers natural-language queries over
them. It also persists agent sessions, plans, and workflow state so future
sessions can resume with continuity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Interrupt and termination signals cancel the
// command context so long-running commands (watch mode) shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".mcb.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// buildContainer loads config, sets up logging, and assembles the service
// graph. The returned cleanup closes everything.
func buildContainer(ctx context.Context) (*registry.Container, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.FilePath
	if verbose {
		logCfg.Level = "debug"
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	container, err := registry.Build(ctx, cfg)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}

	cleanup := func() {
		container.Close()
		logCleanup()
	}
	return container, cleanup, nil
}

// interactive reports whether stdout is a terminal; plain output otherwise.
func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
