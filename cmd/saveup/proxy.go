package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	apphttp "saveup/internal/http"
	"saveup/internal/log"
	"saveup/internal/proxy"
)

var flagPort string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve only the analysis proxy",
	Long:  "Serve only the analysis proxy at " + proxy.Path + ". The upstream API key stays on the server; clients send just the prompt.",
	RunE:  runProxy,
}

func init() {
	proxyCmd.Flags().StringVarP(&flagPort, "port", "p", "", "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(_ *cobra.Command, _ []string) error {
	if cfg.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is required to run the proxy")
	}
	srv := apphttp.NewProxyServer(":"+listenPort(), apphttp.ProxyDeps{
		Handler:            proxy.New(cfg.UpstreamURL, cfg.GeminiAPIKey, cfg.UpstreamTimeout, logger),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Proxy shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting analysis proxy", "port", listenPort(), "path", proxy.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Proxy server error", log.FieldError, err, "port", listenPort())
		return err
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Proxy stopped gracefully")
	return nil
}

func listenPort() string {
	if flagPort != "" {
		return flagPort
	}
	return cfg.Port
}
