package sheets

import (
	"context"
	"fmt"
	"time"

	"saveup/internal/core"
	"saveup/internal/log"
)

// Result summarises one export run.
type Result struct {
	Appended int
	Skipped  int
	RowRef   string
}

// Exporter appends the contributions a sheet does not have yet. Rows are
// matched on timestamp, amount and method, so repeated exports are no-ops.
type Exporter struct {
	store  ContributionStore
	logger *log.Logger
}

func NewExporter(store ContributionStore, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Exporter{store: store, logger: logger.WithComponent(log.ComponentSheets)}
}

// Export writes the missing contributions of g.
func (e *Exporter) Export(ctx context.Context, g core.Goal) (Result, error) {
	existing, err := e.store.ListContributions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list exported contributions: %w", err)
	}

	seen := make(map[string]int, len(existing))
	for _, c := range existing {
		seen[rowKey(c)]++
	}

	var pending []core.Contribution
	for _, c := range g.Contributions {
		k := rowKey(c)
		if seen[k] > 0 {
			seen[k]--
			continue
		}
		pending = append(pending, c)
	}

	res := Result{Skipped: len(g.Contributions) - len(pending)}
	if len(pending) == 0 {
		e.logger.InfoContext(ctx, "Sheet already up to date",
			log.FieldOperation, log.OpExport,
			log.FieldContributions, len(g.Contributions))
		return res, nil
	}

	ref, err := e.store.AppendContributions(ctx, pending)
	if err != nil {
		return res, fmt.Errorf("append contributions: %w", err)
	}
	res.Appended = len(pending)
	res.RowRef = ref

	e.logger.InfoContext(ctx, "Exported contributions",
		log.FieldOperation, log.OpExport,
		"appended", res.Appended,
		"skipped", res.Skipped,
		"range", ref)
	return res, nil
}

func rowKey(c core.Contribution) string {
	return fmt.Sprintf("%s|%d|%s", c.Date.UTC().Truncate(time.Second).Format(time.RFC3339), c.Amount.Cents, c.Method)
}
