// Package metrics derives progress figures from a savings goal.
//
// Every function here is pure: the current time is always passed in, so the
// same goal and instant always produce the same numbers.
package metrics

import (
	"math"
	"time"

	"saveup/internal/core"
)

const (
	// RecentLimit is the size of the recent-activity view.
	RecentLimit = 5

	week = 7 * 24 * time.Hour
)

// Summary bundles every derived figure a presentation adapter needs.
type Summary struct {
	Active          bool                `json:"active"`
	ProgressPercent float64             `json:"progressPercent"`
	WeeksLeft       float64             `json:"weeksLeft"`
	WeeklyTarget    int64               `json:"weeklyTarget"`
	Exposure        Exposure            `json:"exposure"`
	Insight         string              `json:"insight"`
	Recent          []core.Contribution `json:"recent"`
}

// Compute evaluates all metrics for g at instant now.
func Compute(g core.Goal, now time.Time) Summary {
	exposure := ExposureOf(g.Contributions)
	return Summary{
		Active:          g.Active(),
		ProgressPercent: Progress(g),
		WeeksLeft:       WeeksLeft(g, now),
		WeeklyTarget:    WeeklyTarget(g, now),
		Exposure:        exposure,
		Insight:         exposure.String(),
		Recent:          Recent(g.Contributions, RecentLimit),
	}
}

// Progress returns saved/target as a percentage clamped to [0, 100].
func Progress(g core.Goal) float64 {
	if !g.Active() {
		return 0
	}
	p := float64(g.SavedAmount.Cents) / float64(g.TargetAmount.Cents) * 100
	return math.Max(0, math.Min(100, p))
}

// WeeksLeft returns the fractional number of weeks between now and the
// deadline, or 0 when the deadline is unset or already passed.
func WeeksLeft(g core.Goal, now time.Time) float64 {
	if g.Deadline.IsEmpty() {
		return 0
	}
	diff := g.Deadline.Sub(now)
	if diff <= 0 {
		return 0
	}
	return float64(diff) / float64(week)
}

// WeeklyTarget is the whole-rupee amount to save each remaining week,
// rounded up. Zero once the deadline has passed or the goal is reached.
func WeeklyTarget(g core.Goal, now time.Time) int64 {
	if !g.Active() {
		return 0
	}
	weeks := WeeksLeft(g, now)
	if weeks <= 0 {
		return 0
	}
	needed := g.TargetAmount.Sub(g.SavedAmount).Rupees()
	target := int64(math.Ceil(needed / weeks))
	if target < 0 {
		return 0
	}
	return target
}

// Recent returns up to n contributions, most recently added first.
func Recent(contributions []core.Contribution, n int) []core.Contribution {
	if n <= 0 || len(contributions) == 0 {
		return []core.Contribution{}
	}
	if n > len(contributions) {
		n = len(contributions)
	}
	out := make([]core.Contribution, 0, n)
	for i := len(contributions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, contributions[i])
	}
	return out
}

// Last returns the final n contributions in chronological order.
func Last(contributions []core.Contribution, n int) []core.Contribution {
	if n >= len(contributions) {
		return append([]core.Contribution(nil), contributions...)
	}
	return append([]core.Contribution(nil), contributions[len(contributions)-n:]...)
}
