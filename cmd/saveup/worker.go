package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/events"
	"saveup/internal/log"
	"saveup/internal/sheets"
	"saveup/internal/worker"
)

var flagPollInterval string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Keep the Google Sheet in step with the saved goal",
	Long:  "Export new drops to Google Sheets on every contribution event from the broker, with a periodic export as backup. Without AMQP_URL only the periodic export runs.",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&flagPollInterval, "poll", "5m", "Backup export interval (0 disables)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	if !cfg.SheetsEnabled() {
		return errors.New("GOOGLE_SPREADSHEET_ID and Google credentials are required for the worker")
	}
	wcfg := worker.DefaultConfig()
	d, err := time.ParseDuration(flagPollInterval)
	if err != nil {
		return fmt.Errorf("invalid --poll: %w", err)
	}
	wcfg.PollInterval = d

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	store, err := app.ContributionStore(context.Background(), false)
	if err != nil {
		_ = app.Close()
		return err
	}
	w := worker.NewExportWorker(app.Tracker, sheets.NewExporter(store, logger), wcfg, logger)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := w.Stop(ctx); err != nil {
			logger.Error("Worker stop error", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close app", log.FieldError, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		return err
	}

	if client := app.EventsClient(); client != nil {
		logger.Info("Consuming state changes", "queue", cfg.AMQPQueue)
		err := client.Consume(ctx, func(msg *events.StateChangedMessage) error {
			return w.HandleStateChanged(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Consumer stopped", log.FieldError, err)
		}
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
	return nil
}
