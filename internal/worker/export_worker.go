// Package worker keeps the Google Sheet in step with the saved goal. It
// exports on every contribution event and polls as a backup for events that
// were dropped or published while the worker was down.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"saveup/internal/core"
	"saveup/internal/events"
	"saveup/internal/log"
	"saveup/internal/sheets"
	"saveup/internal/tracker"
)

// GoalSource reloads the persisted goal before each export.
type GoalSource interface {
	Load(ctx context.Context)
	Goal() core.Goal
}

// Config holds configuration for the export worker
type Config struct {
	// PollInterval is how often to export without an event (default: 5m).
	// Zero or less disables polling.
	PollInterval time.Duration
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Minute}
}

// ExportWorker runs sheet exports for state-change events and on a timer.
type ExportWorker struct {
	source   GoalSource
	exporter *sheets.Exporter
	config   Config
	logger   *log.Logger

	exportMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportWorker(source GoalSource, exporter *sheets.Exporter, config Config, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		source:   source,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleStateChanged exports after a contribution_added message. Other kinds
// carry no new rows and are acknowledged without work. An export error is
// returned so the broker redelivers the message.
func (w *ExportWorker) HandleStateChanged(ctx context.Context, msg *events.StateChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing state change",
		"kind", msg.Kind,
		log.FieldContributions, msg.Contributions)

	if msg.Kind != string(tracker.ContributionAdded) {
		return nil
	}
	if _, err := w.ExportNow(ctx); err != nil {
		return fmt.Errorf("export after %s: %w", msg.Kind, err)
	}
	return nil
}

// ExportNow reloads the goal and appends the rows the sheet is missing.
// Concurrent calls run one at a time.
func (w *ExportWorker) ExportNow(ctx context.Context) (sheets.Result, error) {
	w.exportMu.Lock()
	defer w.exportMu.Unlock()

	w.source.Load(ctx)
	g := w.source.Goal()
	if !g.Active() {
		return sheets.Result{}, nil
	}
	return w.exporter.Export(ctx, g)
}

// Start runs an export immediately and then every PollInterval. Returns an
// error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("export worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	if res, err := w.ExportNow(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
	} else {
		w.logger.InfoContext(ctx, "Startup export completed",
			"appended", res.Appended,
			"skipped", res.Skipped)
	}

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Export worker started", "poll_interval", w.config.PollInterval)
	return nil
}

// Stop stops the poll loop and waits for an export in flight.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Export worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}
}

func (w *ExportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	if w.config.PollInterval <= 0 {
		select {
		case <-ctx.Done():
		case <-w.stopCh:
		}
		return
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			res, err := w.ExportNow(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
				continue
			}
			if res.Appended > 0 {
				w.logger.InfoContext(ctx, "Periodic export appended rows", "appended", res.Appended)
			}
		}
	}
}
