package http

import (
	"strconv"
	"time"

	"saveup/internal/core"
	"saveup/internal/metrics"
)

const recentDateLayout = "02 Jan, 15:04"

// recentRow is one line of the recent-activity list.
type recentRow struct {
	Method core.Method
	Label  string
	Amount string
	When   string
}

// pageData is the dashboard model. Amounts are preformatted in whole rupees.
type pageData struct {
	Active        bool
	Target        string
	TargetInput   string
	Saved         string
	WeeklyTarget  string
	Deadline      string
	Today         string
	RequireFuture bool

	QuickAddSelected bool

	Summary metrics.Summary
	Recent  []recentRow
	Flash   *message
	Coach   *message
}

func newPageData(g core.Goal, now time.Time) pageData {
	s := metrics.Compute(g, now)
	p := pageData{
		Active:       s.Active,
		Target:       g.TargetAmount.String(),
		Saved:        g.SavedAmount.String(),
		WeeklyTarget: core.FormatRupees(s.WeeklyTarget),
		Deadline:     g.Deadline.String(),
		Today:        core.DateOf(now).String(),
		Summary:      s,
	}
	if s.Active {
		p.TargetInput = strconv.FormatFloat(g.TargetAmount.Rupees(), 'f', -1, 64)
	}
	for _, c := range s.Recent {
		p.Recent = append(p.Recent, recentRow{
			Method: c.Method,
			Label:  c.Method.Label(),
			Amount: c.Amount.String(),
			When:   c.Date.In(now.Location()).Format(recentDateLayout),
		})
	}
	return p
}

// stateResponse is the body of GET /api/state.
type stateResponse struct {
	Goal    core.Goal       `json:"goal"`
	Summary metrics.Summary `json:"summary"`
}
