package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"saveup/internal/core"
	"saveup/internal/storage"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func rupees(r int64) core.Money { return core.Money{Cents: r * 100} }

func newTracker(t *testing.T, opts ...Option) (*Tracker, *storage.GoalStore) {
	t.Helper()
	store := storage.NewGoalStore(storage.NewMemoryKV(), nil)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	tr := New(store, opts...)
	tr.Load(context.Background())
	return tr, store
}

func mustGoal(t *testing.T, tr *Tracker, target int64, deadline core.Date) {
	t.Helper()
	if err := tr.SetOrEditGoal(context.Background(), rupees(target), deadline); err != nil {
		t.Fatalf("SetOrEditGoal: %v", err)
	}
}

func mustAdd(t *testing.T, tr *Tracker, amount int64, m core.Method) {
	t.Helper()
	if err := tr.AddContribution(context.Background(), rupees(amount), m); err != nil {
		t.Fatalf("AddContribution: %v", err)
	}
}

func TestSavedAmountIsSumOfContributions(t *testing.T) {
	tr, store := newTracker(t)
	mustGoal(t, tr, 6000, core.NewDate(2026, 11, 16))

	for _, a := range []int64{100, 250, 75, 1} {
		mustAdd(t, tr, a, core.Cash)
	}
	mustAdd(t, tr, 74, core.UPI)

	g := tr.Goal()
	if g.SavedAmount != rupees(500) || g.SavedAmount != g.Sum() {
		t.Fatalf("saved = %v, sum = %v, want 500", g.SavedAmount, g.Sum())
	}
	if len(g.Contributions) != 5 {
		t.Fatalf("contributions = %d, want 5", len(g.Contributions))
	}
	if !g.Contributions[0].Date.Equal(now) {
		t.Fatalf("contribution should be stamped with the tracker clock, got %v", g.Contributions[0].Date)
	}

	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.SavedAmount != g.SavedAmount || len(persisted.Contributions) != 5 {
		t.Fatalf("persisted state diverged: %+v", persisted)
	}
}

func TestNewGoalResetsHistory(t *testing.T) {
	kv := storage.NewMemoryKV()
	store := storage.NewGoalStore(kv, nil)
	// A stale history without an active goal must not survive a new goal.
	if err := store.Save(context.Background(), core.Goal{
		SavedAmount:   rupees(40),
		Contributions: []core.Contribution{{Amount: rupees(40), Method: core.UPI, Date: now}},
	}); err != nil {
		t.Fatal(err)
	}
	tr := New(store, WithClock(fixedClock))
	tr.Load(context.Background())

	mustGoal(t, tr, 1000, core.NewDate(2026, 12, 31))
	g := tr.Goal()
	if g.SavedAmount.Cents != 0 || len(g.Contributions) != 0 {
		t.Fatalf("new goal should start empty, got %+v", g)
	}
}

func TestEditGoalPreservesHistory(t *testing.T) {
	tr, _ := newTracker(t)
	mustGoal(t, tr, 1000, core.NewDate(2026, 12, 31))
	mustAdd(t, tr, 200, core.Cash)
	mustAdd(t, tr, 50, core.UPI)

	mustGoal(t, tr, 5000, core.NewDate(2027, 3, 1))
	g := tr.Goal()
	if g.TargetAmount != rupees(5000) || g.Deadline != core.NewDate(2027, 3, 1) {
		t.Fatalf("edit not applied: %+v", g)
	}
	if g.SavedAmount != rupees(250) || len(g.Contributions) != 2 {
		t.Fatalf("edit must keep history, got %+v", g)
	}
}

func TestInvalidInputLeavesStateUnchanged(t *testing.T) {
	tr, _ := newTracker(t)
	mustGoal(t, tr, 1000, core.NewDate(2026, 12, 31))
	mustAdd(t, tr, 10, core.Cash)
	before := tr.Goal()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"negative amount", func() error {
			return tr.AddContribution(context.Background(), rupees(-5), core.Cash)
		}, core.ErrInvalidAmount},
		{"zero amount", func() error {
			return tr.AddContribution(context.Background(), core.Money{}, core.UPI)
		}, core.ErrInvalidAmount},
		{"unknown method", func() error {
			return tr.AddContribution(context.Background(), rupees(5), core.Method("card"))
		}, core.ErrInvalidMethod},
		{"zero target", func() error {
			return tr.SetOrEditGoal(context.Background(), core.Money{}, core.NewDate(2026, 12, 31))
		}, core.ErrInvalidAmount},
		{"missing deadline", func() error {
			return tr.SetOrEditGoal(context.Background(), rupees(100), core.Date{})
		}, core.ErrMissingDeadline},
		{"past deadline", func() error {
			return tr.SetOrEditGoal(context.Background(), rupees(100), core.NewDate(2026, 10, 18))
		}, core.ErrPastDeadline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.want) || !errors.Is(err, core.ErrInvalidInput) {
				t.Fatalf("err = %v, want %v wrapping ErrInvalidInput", err, tt.want)
			}
			after := tr.Goal()
			if after.SavedAmount != before.SavedAmount || len(after.Contributions) != len(before.Contributions) ||
				after.TargetAmount != before.TargetAmount || after.Deadline != before.Deadline {
				t.Fatalf("state changed: before %+v after %+v", before, after)
			}
		})
	}
}

func TestDeadlinePolicy(t *testing.T) {
	today := core.NewDate(2026, 10, 19)
	yesterday := core.NewDate(2026, 10, 18)

	strict, _ := newTracker(t)
	if err := strict.SetOrEditGoal(context.Background(), rupees(100), today); err != nil {
		t.Fatalf("today should be accepted: %v", err)
	}

	lenient, _ := newTracker(t, WithPolicy(Policy{RequireFutureDeadline: false, QuickAddMethod: QuickAddCash}))
	if err := lenient.SetOrEditGoal(context.Background(), rupees(100), yesterday); err != nil {
		t.Fatalf("lenient policy should accept a past deadline: %v", err)
	}
}

func TestQuickAddPolicy(t *testing.T) {
	tests := []struct {
		mode QuickAddMode
		want core.Method
	}{
		{QuickAddCash, core.Cash},
		{QuickAddSelected, core.UPI},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			tr, _ := newTracker(t, WithPolicy(Policy{RequireFutureDeadline: true, QuickAddMethod: tt.mode}))
			mustGoal(t, tr, 1000, core.NewDate(2026, 12, 31))
			if err := tr.QuickAdd(context.Background(), rupees(20), core.UPI); err != nil {
				t.Fatalf("QuickAdd: %v", err)
			}
			g := tr.Goal()
			if got := g.Contributions[len(g.Contributions)-1].Method; got != tt.want {
				t.Fatalf("method = %s, want %s", got, tt.want)
			}
		})
	}

	if ParseQuickAddMode("selected") != QuickAddSelected || ParseQuickAddMode("bogus") != QuickAddCash {
		t.Fatal("ParseQuickAddMode mapping is wrong")
	}
}

func TestSubscribersSeeEveryMutation(t *testing.T) {
	tr, _ := newTracker(t)
	var kinds []EventKind
	var lastSaved core.Money
	unsubscribe := tr.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		lastSaved = ev.Goal.SavedAmount
		if ev.Kind == ContributionAdded && ev.Contribution == nil {
			t.Errorf("contribution event without contribution")
		}
	})

	mustGoal(t, tr, 1000, core.NewDate(2026, 12, 31))
	mustAdd(t, tr, 30, core.UPI)
	mustGoal(t, tr, 2000, core.NewDate(2026, 12, 31))
	_ = tr.AddContribution(context.Background(), rupees(-1), core.UPI)

	want := []EventKind{GoalSet, ContributionAdded, GoalEdited}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
	if lastSaved != rupees(30) {
		t.Fatalf("event snapshot saved = %v, want 30", lastSaved)
	}

	unsubscribe()
	mustAdd(t, tr, 5, core.Cash)
	if len(kinds) != 3 {
		t.Fatalf("listener called after unsubscribe")
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (core.Goal, error) {
	return core.Goal{}, core.ErrStorage
}

func (failingStore) Save(context.Context, core.Goal) error {
	return core.ErrStorage
}

func (failingStore) Clear(context.Context) error { return nil }

func TestStorageFailuresAreNotFatal(t *testing.T) {
	tr := New(failingStore{}, WithClock(fixedClock))
	tr.Load(context.Background())
	if tr.Goal().Active() {
		t.Fatal("failed load should leave the empty goal")
	}
	mustGoal(t, tr, 100, core.NewDate(2026, 12, 31))
	mustAdd(t, tr, 10, core.Cash)
	if tr.Goal().SavedAmount != rupees(10) {
		t.Fatalf("in-memory state should stay authoritative, got %+v", tr.Goal())
	}
}

func TestReset(t *testing.T) {
	tr, store := newTracker(t)
	mustGoal(t, tr, 100, core.NewDate(2026, 12, 31))
	mustAdd(t, tr, 10, core.Cash)
	if err := tr.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if tr.Goal().Active() {
		t.Fatal("goal should be cleared")
	}
	g, err := store.Load(context.Background())
	if err != nil || g.Active() {
		t.Fatalf("slot should be empty after reset, got %+v, %v", g, err)
	}
}

func TestConcurrentContributions(t *testing.T) {
	tr, _ := newTracker(t)
	mustGoal(t, tr, 100000, core.NewDate(2026, 12, 31))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := core.Cash
			if i%2 == 0 {
				m = core.UPI
			}
			_ = tr.AddContribution(context.Background(), rupees(2), m)
		}(i)
	}
	wg.Wait()

	g := tr.Goal()
	if len(g.Contributions) != 50 || g.SavedAmount != rupees(100) || g.Sum() != g.SavedAmount {
		t.Fatalf("lost updates: %d contributions, saved %v", len(g.Contributions), g.SavedAmount)
	}
}

func TestGoalReturnsCopy(t *testing.T) {
	tr, _ := newTracker(t)
	mustGoal(t, tr, 100, core.NewDate(2026, 12, 31))
	mustAdd(t, tr, 10, core.Cash)

	g := tr.Goal()
	g.Contributions[0].Amount = rupees(9999)
	if tr.Goal().Contributions[0].Amount != rupees(10) {
		t.Fatal("Goal must not expose internal state")
	}
}
