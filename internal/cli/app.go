package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saveup/internal/analysis"
	"saveup/internal/backend"
	"saveup/internal/cache"
	"saveup/internal/config"
	"saveup/internal/events"
	"saveup/internal/log"
	"saveup/internal/sheets"
	gsheet "saveup/internal/sheets/google"
	mem "saveup/internal/sheets/memory"
	"saveup/internal/storage"
	"saveup/internal/tracker"
)

// App holds the wired components shared by every command.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Tracker *tracker.Tracker
	Session *storage.Session
	Coach   *analysis.Coach
	Caches  *cache.Manager

	backend *backend.BackendResult
	events  *events.Client
	relay   *events.Relay
	detach  func()
}

// Option customises NewApp; tests use it to swap the clock or completer.
type Option func(*appOptions)

type appOptions struct {
	now       func() time.Time
	completer analysis.Completer
	sleep     analysis.SleepFunc
}

func WithClock(now func() time.Time) Option {
	return func(o *appOptions) { o.now = now }
}

func WithCompleter(c analysis.Completer) Option {
	return func(o *appOptions) { o.completer = c }
}

func WithSleep(s analysis.SleepFunc) Option {
	return func(o *appOptions) { o.sleep = s }
}

// NewApp opens the storage backend, loads the goal and builds the coach.
// Event publishing is best effort: a broker that cannot be reached is logged
// and the app runs without it.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app config is nil")
	}
	if logger == nil {
		logger = log.Discard()
	}
	o := appOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create storage backend: %w", err)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Session: storage.NewSession(result.KV),
		Caches:  cache.NewManager(logger),
		backend: result,
	}

	policy := tracker.Policy{
		RequireFutureDeadline: cfg.RequireFutureDeadline,
		QuickAddMethod:        tracker.ParseQuickAddMode(cfg.QuickAddMethod),
	}
	app.Tracker = tracker.New(storage.NewGoalStore(result.KV, logger),
		tracker.WithPolicy(policy),
		tracker.WithClock(o.now),
		tracker.WithLogger(logger))
	app.Tracker.Load(ctx)

	completer := o.completer
	if completer == nil {
		completer, err = NewCompleter(ctx, cfg)
		if err != nil {
			logger.Warn("Analysis client unavailable", log.FieldError, err)
			completer = analysis.NotConfigured
		}
	}
	retry := RetryPolicyFrom(cfg)
	if o.sleep != nil {
		retry.Sleep = o.sleep
	}
	app.Coach = analysis.NewCoach(completer,
		analysis.WithRetry(retry),
		analysis.WithClock(o.now),
		analysis.WithLogger(logger),
		analysis.WithCache(cfg.AnalysisCacheTTL))
	if c := app.Coach.Cache(); c != nil {
		app.Caches.Register(c)
	}

	if cfg.EventsEnabled() {
		app.startEvents(logger)
	}

	return app, nil
}

func (a *App) startEvents(logger *log.Logger) {
	client, err := events.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue, logger)
	if err != nil {
		logger.Warn("Event publishing disabled, broker unreachable",
			log.FieldOperation, log.OpStartup,
			log.FieldError, err)
		return
	}
	a.events = client
	a.relay = events.NewRelay(client, 0, logger)
	a.detach = a.relay.Attach(a.Tracker)
	logger.Info("Publishing state changes",
		"exchange", a.Config.AMQPExchange,
		"queue", a.Config.AMQPQueue)
}

// NewCompleter picks the completion transport: the configured proxy endpoint
// first, then the GenAI SDK with the API key. With neither it returns
// analysis.NotConfigured.
func NewCompleter(ctx context.Context, cfg *config.Config) (analysis.Completer, error) {
	switch {
	case cfg.AnalysisEndpoint != "":
		return analysis.NewHTTPCompleter(cfg.AnalysisEndpoint, "", cfg.UpstreamTimeout), nil
	case cfg.GeminiAPIKey != "":
		return analysis.NewGenAICompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return analysis.NotConfigured, nil
	}
}

// RetryPolicyFrom builds the coach retry policy from cfg. The coach logs
// each failed attempt itself.
func RetryPolicyFrom(cfg *config.Config) analysis.RetryPolicy {
	backoff := analysis.FixedBackoff(cfg.AnalysisDelay)
	if cfg.AnalysisBackoff == "exponential" {
		backoff = analysis.ExponentialBackoff(cfg.AnalysisDelay, cfg.AnalysisMaxDelay)
	}
	return analysis.RetryPolicy{
		MaxAttempts: cfg.AnalysisMaxAttempts,
		Backoff:     backoff,
	}
}

// ContributionStore returns the export destination: Google Sheets when
// configured, otherwise (or with dryRun) an in-memory sheet.
func (a *App) ContributionStore(ctx context.Context, dryRun bool) (sheets.ContributionStore, error) {
	if dryRun || !a.Config.SheetsEnabled() {
		return mem.New(), nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   a.Config.GoogleSpreadsheetID,
		SheetName:       a.Config.GoogleSheetName,
		CredentialsFile: a.Config.GoogleCredentialsFile,
		CredentialsJSON: a.Config.GoogleCredentialsJSON,
		OAuthClientFile: a.Config.GoogleOAuthClientFile,
		OAuthTokenFile:  a.Config.GoogleOAuthTokenFile,
	}, a.Logger)
}

// Export appends the contributions the destination does not have yet.
func (a *App) Export(ctx context.Context, dryRun bool) (sheets.Result, error) {
	store, err := a.ContributionStore(ctx, dryRun)
	if err != nil {
		return sheets.Result{}, err
	}
	return sheets.NewExporter(store, a.Logger).Export(ctx, a.Tracker.Goal())
}

// EventsClient returns the broker client, or nil when events are off.
func (a *App) EventsClient() *events.Client {
	return a.events
}

// Close flushes pending events and releases the storage backend.
func (a *App) Close() error {
	if a.detach != nil {
		a.detach()
	}
	if a.relay != nil {
		a.relay.Close()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.Logger.Warn("Failed to close event client", log.FieldError, err)
		}
	}
	a.Caches.Stop()
	return a.backend.Close()
}
