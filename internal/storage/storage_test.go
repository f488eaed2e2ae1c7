package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"saveup/internal/core"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	fileKV, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	sqliteKV, err := NewSQLiteKV(filepath.Join(t.TempDir(), "saveup.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() { sqliteKV.Close() })
	return map[string]KV{
		"memory": NewMemoryKV(),
		"file":   fileKV,
		"sqlite": sqliteKV,
	}
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing: want ErrNotFound, got %v", err)
			}
			if err := kv.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := kv.Set(ctx, "k", []byte(`{"a":2}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err := kv.Get(ctx, "k")
			if err != nil || string(got) != `{"a":2}` {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if err := kv.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := kv.Delete(ctx, "k"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if _, err := kv.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("after delete: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFileKVRejectsPathKeys(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := kv.Set(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("Set(%q) should fail", key)
		}
	}
}

func TestFileKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(context.Background(), GoalKey, []byte("{}")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != GoalKey+".json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestGoalStoreMissingSlot(t *testing.T) {
	s := NewGoalStore(NewMemoryKV(), nil)
	g, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Active() || len(g.Contributions) != 0 {
		t.Fatalf("expected empty goal, got %+v", g)
	}
}

func TestGoalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewGoalStore(NewMemoryKV(), nil)
	when := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	want := core.Goal{
		TargetAmount: core.Money{Cents: 600000},
		Deadline:     core.NewDate(2026, 11, 16),
		SavedAmount:  core.Money{Cents: 25050},
		Contributions: []core.Contribution{
			{Amount: core.Money{Cents: 10000}, Method: core.Cash, Date: when},
			{Amount: core.Money{Cents: 15050}, Method: core.UPI, Date: when.Add(time.Hour)},
		},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGoalStoreCoercion(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		target    int64
		saved     int64
		count     int
		deadline  string
		wantError bool
	}{
		{
			name:     "string numbers",
			raw:      `{"targetAmount":"6000","deadline":"2026-11-16","savedAmount":"100","contributions":[{"amount":"100","method":"cash","date":"2026-10-19T00:00:00Z"}]}`,
			target:   600000,
			saved:    10000,
			count:    1,
			deadline: "2026-11-16",
		},
		{
			name: "garbage fields default",
			raw:  `{"targetAmount":"lots","deadline":42,"savedAmount":null,"contributions":"none"}`,
		},
		{
			name:     "invalid contributions dropped and saved recomputed",
			raw:      `{"targetAmount":500,"deadline":"2026-12-01","savedAmount":999,"contributions":[{"amount":50,"method":"upi"},{"amount":-5,"method":"cash"},{"amount":10,"method":"card"},{"amount":25,"method":"CASH"}]}`,
			target:   50000,
			saved:    7500,
			count:    2,
			deadline: "2026-12-01",
		},
		{
			name: "negative target means no goal",
			raw:  `{"targetAmount":-10}`,
		},
		{
			name:      "not json",
			raw:       `{{{`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := NewMemoryKV()
			if err := kv.Set(context.Background(), GoalKey, []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			g, err := NewGoalStore(kv, nil).Load(context.Background())
			if tt.wantError {
				if !errors.Is(err, core.ErrStorage) {
					t.Fatalf("want ErrStorage, got %v", err)
				}
				if g.Active() || len(g.Contributions) != 0 {
					t.Fatalf("corrupt slot must yield the empty goal, got %+v", g)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if g.TargetAmount.Cents != tt.target {
				t.Fatalf("target = %d, want %d", g.TargetAmount.Cents, tt.target)
			}
			if g.SavedAmount.Cents != tt.saved {
				t.Fatalf("saved = %d, want %d", g.SavedAmount.Cents, tt.saved)
			}
			if len(g.Contributions) != tt.count {
				t.Fatalf("contributions = %d, want %d", len(g.Contributions), tt.count)
			}
			if g.Deadline.String() != tt.deadline {
				t.Fatalf("deadline = %q, want %q", g.Deadline.String(), tt.deadline)
			}
			if g.SavedAmount != g.Sum() {
				t.Fatalf("saved amount %v does not match sum %v", g.SavedAmount, g.Sum())
			}
		})
	}
}

func TestGoalStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewGoalStore(NewMemoryKV(), nil)
	if err := s.Save(ctx, core.Goal{TargetAmount: core.Money{Cents: 100}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	g, err := s.Load(ctx)
	if err != nil || g.Active() {
		t.Fatalf("after Clear got %+v, %v", g, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSession(NewMemoryKV())
	if s.Active(ctx) {
		t.Fatal("fresh session should be inactive")
	}
	token, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(token) != 36 {
		t.Fatalf("token %q does not look like a uuid", token)
	}
	if !s.Active(ctx) {
		t.Fatal("session should be active after Start")
	}
	if got, _ := s.Token(ctx); got != token {
		t.Fatalf("Token = %q, want %q", got, token)
	}
	if err := s.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	if s.Active(ctx) {
		t.Fatal("session should be inactive after End")
	}
	if err := s.End(ctx); err != nil {
		t.Fatalf("End twice: %v", err)
	}
}
