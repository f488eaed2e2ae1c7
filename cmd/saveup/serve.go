package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	apphttp "saveup/internal/http"
	"saveup/internal/log"
	"saveup/internal/proxy"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 5 * time.Minute
)

var flagNoProxy bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard",
	Long:  "Serve the web dashboard. With GEMINI_API_KEY set, the analysis proxy is mounted at " + proxy.Path + " as well.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&flagNoProxy, "no-proxy", false, "Do not mount the analysis proxy")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	deps := apphttp.Deps{
		Tracker:            app.Tracker,
		Session:            app.Session,
		Coach:              app.Coach,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	}
	if cfg.GeminiAPIKey != "" && !flagNoProxy {
		deps.Proxy = proxy.New(cfg.UpstreamURL, cfg.GeminiAPIKey, cfg.UpstreamTimeout, logger)
	}
	srv := apphttp.NewServer(":"+listenPort(), deps)
	app.Caches.StartCleanup(cleanupInterval)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close app", log.FieldError, err)
		}
	})

	logger.Info("Starting saveup server",
		"port", listenPort(),
		"backend", cfg.StorageBackend,
		"proxy", deps.Proxy != nil,
		"events", app.EventsClient() != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", listenPort())
		return err
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
	return nil
}
