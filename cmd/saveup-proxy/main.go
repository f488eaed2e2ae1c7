// Command saveup-proxy serves the analysis proxy on its own, for deployments
// that keep the Gemini API key away from the dashboard host.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"saveup/internal/cli"
	apphttp "saveup/internal/http"
	"saveup/internal/log"
	"saveup/internal/proxy"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", os.Stderr).Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout).WithComponent(log.ComponentProxy)

	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}

	srv := apphttp.NewProxyServer(":"+cfg.Port, apphttp.ProxyDeps{
		Handler:            proxy.New(cfg.UpstreamURL, cfg.GeminiAPIKey, cfg.UpstreamTimeout, logger),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting saveup proxy", "port", cfg.Port, "path", proxy.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
