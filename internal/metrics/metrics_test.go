package metrics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"saveup/internal/core"
)

var now = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func contributions(method core.Method, rupees ...float64) []core.Contribution {
	out := make([]core.Contribution, 0, len(rupees))
	for i, r := range rupees {
		out = append(out, core.Contribution{
			Amount: core.FromRupees(r),
			Method: method,
			Date:   now.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestWeeklyTargetScenario(t *testing.T) {
	g := core.Goal{
		TargetAmount: core.Money{Cents: 600000},
		Deadline:     core.DateOf(now.AddDate(0, 0, 28)),
	}
	if got := WeeklyTarget(g, now); got != 1500 {
		t.Fatalf("weekly target = %d, want 1500", got)
	}
	if got := Progress(g); got != 0 {
		t.Fatalf("progress = %v, want 0", got)
	}
	if got := WeeksLeft(g, now); got != 4 {
		t.Fatalf("weeks left = %v, want 4", got)
	}
}

func TestWeeklyTargetRoundsUpAndClamps(t *testing.T) {
	g := core.Goal{
		TargetAmount: core.Money{Cents: 100000},
		SavedAmount:  core.Money{Cents: 0},
		Deadline:     core.DateOf(now.AddDate(0, 0, 21)),
	}
	// 1000 / 3 = 333.33 -> 334
	if got := WeeklyTarget(g, now); got != 334 {
		t.Fatalf("weekly target = %d, want 334", got)
	}

	g.SavedAmount = core.Money{Cents: 200000}
	if got := WeeklyTarget(g, now); got != 0 {
		t.Fatalf("overshoot should clamp to 0, got %d", got)
	}

	g.SavedAmount = core.Money{}
	g.Deadline = core.Date{}
	if got := WeeklyTarget(g, now); got != 0 {
		t.Fatalf("unset deadline should give 0, got %d", got)
	}
}

func TestWeeksLeftPastDeadline(t *testing.T) {
	for _, days := range []int{-1, -7, -365} {
		g := core.Goal{TargetAmount: core.Money{Cents: 100}, Deadline: core.DateOf(now.AddDate(0, 0, days))}
		if got := WeeksLeft(g, now); got != 0 {
			t.Fatalf("deadline %d days ago: weeks left = %v, want 0", -days, got)
		}
		if got := WeeklyTarget(g, now); got != 0 {
			t.Fatalf("deadline %d days ago: weekly target = %d, want 0", -days, got)
		}
	}
	// Later the same day as the deadline the deadline has passed too.
	g := core.Goal{TargetAmount: core.Money{Cents: 100}, Deadline: core.DateOf(now)}
	if got := WeeksLeft(g, now.Add(10*time.Hour)); got != 0 {
		t.Fatalf("weeks left on deadline day = %v", got)
	}
}

func TestProgressBounds(t *testing.T) {
	cases := []struct {
		saved, target int64
		want          float64
	}{
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
		{250, 100, 100},
		{1, 4, 25},
		{500, 0, 0},
	}
	for _, tc := range cases {
		g := core.Goal{SavedAmount: core.Money{Cents: tc.saved}, TargetAmount: core.Money{Cents: tc.target}}
		got := Progress(g)
		if got < 0 || got > 100 {
			t.Fatalf("progress out of range: %v", got)
		}
		if got != tc.want {
			t.Fatalf("progress(%d/%d) = %v, want %v", tc.saved, tc.target, got, tc.want)
		}
	}
}

func TestExposureInsufficient(t *testing.T) {
	cs := append(contributions(core.Cash, 100, 100, 100), contributions(core.UPI, 50, 50)...)
	e := ExposureOf(cs)
	if e.Sufficient {
		t.Fatalf("expected insufficient data with 2 UPI entries")
	}
	want := "Log at least 3 contributions of both Cash and UPI. (Current: Cash 3/3, UPI 2/3)"
	if e.String() != want {
		t.Fatalf("got %q", e.String())
	}
}

func TestExposureCashLeads(t *testing.T) {
	cs := append(contributions(core.Cash, 100, 100, 100), contributions(core.UPI, 50, 50, 50)...)
	e := ExposureOf(cs)
	if !e.Sufficient || e.Leader != core.Cash || e.Difference != 50 {
		t.Fatalf("unexpected exposure: %+v", e)
	}
	want := "Cash drops are larger! You save ₹50 more per drop when using cash."
	if e.String() != want {
		t.Fatalf("got %q", e.String())
	}
}

func TestExposureUPILeadsAndBalanced(t *testing.T) {
	cs := append(contributions(core.Cash, 10, 20, 30), contributions(core.UPI, 25, 25, 25, 26)...)
	e := ExposureOf(cs)
	// cash avg 20, upi avg 25.25
	if e.Leader != core.UPI || e.Difference != 5 {
		t.Fatalf("unexpected exposure: %+v", e)
	}

	// Averages equal but amounts differ: 10,20,30 vs 15,25,20.
	cs = append(contributions(core.Cash, 10, 20, 30), contributions(core.UPI, 15, 25, 20)...)
	e = ExposureOf(cs)
	if !e.Balanced() {
		t.Fatalf("expected balanced, got %+v", e)
	}
	if e.String() != "Your saving averages are balanced. Great discipline!" {
		t.Fatalf("got %q", e.String())
	}
}

func TestExposureTinyDifferenceIsNotBalanced(t *testing.T) {
	cs := append(contributions(core.Cash, 100, 100, 100.01), contributions(core.UPI, 100, 100, 100)...)
	e := ExposureOf(cs)
	if e.Balanced() || e.Leader != core.Cash {
		t.Fatalf("strictly greater mean must lead, got %+v", e)
	}
	if e.Difference != 0 {
		t.Fatalf("difference should round to 0, got %d", e.Difference)
	}
}

func TestRecent(t *testing.T) {
	cs := contributions(core.Cash, 1, 2, 3, 4, 5, 6, 7)
	got := Recent(cs, RecentLimit)
	want := []core.Contribution{cs[6], cs[5], cs[4], cs[3], cs[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("recent mismatch (-want +got):\n%s", diff)
	}
	if got := Recent(nil, RecentLimit); len(got) != 0 {
		t.Fatalf("expected empty view, got %v", got)
	}
	if got := Last(cs, 2); !cmp.Equal(got, cs[5:]) {
		t.Fatalf("last 2 = %v", got)
	}
}

func TestCompute(t *testing.T) {
	g := core.Goal{
		TargetAmount:  core.Money{Cents: 100000},
		Deadline:      core.DateOf(now.AddDate(0, 0, 14)),
		Contributions: contributions(core.UPI, 100, 150),
	}
	g.SavedAmount = g.Sum()
	s := Compute(g, now)
	if !s.Active || s.ProgressPercent != 25 || s.WeeksLeft != 2 || s.WeeklyTarget != 375 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if len(s.Recent) != 2 || s.Recent[0].Amount.Cents != 15000 {
		t.Fatalf("unexpected recent view: %+v", s.Recent)
	}
}
