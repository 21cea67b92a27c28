// Package cli provides the command-line interface for notegen.
package cli

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/notegen/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global config and logger, initialized before every command run.
	cfg       config.Config
	logger    *slog.Logger
	closeLogs func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "notegen",
	Short: "Lecture notes generator",
	Long: `Notegen turns recorded lectures into summarized PDF notes.

A submitted share link is validated, its media downloaded, the audio
extracted and transcribed, and the transcript summarized into a PDF
stored alongside the task record in object storage.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		cfg = config.Load()
		logger, closeLogs = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogs != nil {
			_ = closeLogs()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
