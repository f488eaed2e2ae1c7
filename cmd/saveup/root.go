package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/config"
	"saveup/internal/log"
)

var (
	flagLogLevel string
	flagBackend  string
	flagDataDir  string
	flagQuiet    bool

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "saveup",
	Short:         "Save toward one goal, one drop at a time",
	Long:          "Track a savings goal with a deadline, log cash and UPI drops, and ask the coach how you are doing.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		var err error
		cfg, err = cli.LoadAndValidateConfig(applyFlags)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if flagQuiet {
			level = "error"
		}
		logger = cli.SetupLogger(level, os.Stderr)
		return nil
	},
	RunE: runStatus,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Storage backend (memory, file, sqlite)")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Directory for file and sqlite storage")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

// applyFlags lets explicit flags win over the config file and environment.
func applyFlags(c *config.Config) {
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
	if flagBackend != "" {
		c.StorageBackend = flagBackend
	}
	if flagDataDir != "" {
		c.DataDir = flagDataDir
		c.SQLiteDBPath = config.DefaultSQLitePath(flagDataDir)
	}
}

// withApp wires the application for one command and closes it afterwards.
func withApp(fn func(ctx context.Context, app *cli.App) error) error {
	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close app", log.FieldError, err)
		}
	}()
	return fn(ctx, app)
}
