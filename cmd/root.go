// Package cmd wires the command line interface. Each command lives in
// its own file and registers itself on the root command in init().
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/app"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/log"
)

var debugLogging bool

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Inkwell - research-grounded writing assistant backend",
	Long: `Inkwell ingests an author's research material (PDFs, articles,
transcripts, raw text), indexes it for semantic retrieval, and answers
questions grounded in that material with citations.

Run "inkwell serve" to start the HTTP API, or use the subcommands to
ingest material and ask questions directly from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
}

// newLogger builds the process logger. Debug level is enabled by the
// --debug flag or the INKWELL_DEBUG environment variable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugLogging || os.Getenv("INKWELL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// setupApp loads configuration and builds the full application graph.
// The caller owns the returned App and must Close it.
func setupApp(ctx context.Context) (*app.App, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	slog.SetDefault(logger)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, cfg, logger, nil
}

// closeApp closes the App, logging rather than failing on cleanup errors.
func closeApp(a *app.App, logger *slog.Logger) {
	if err := a.Close(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
