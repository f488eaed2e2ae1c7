package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"saveup/internal/core"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	mu       sync.Mutex
	calls    int
	failures int
	text     string
	requests []Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.calls <= f.failures {
		return "", errors.New("upstream 503")
	}
	return f.text, nil
}

type fakeSleeper struct {
	delays []time.Duration
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func goalWith(n int) core.Goal {
	g := core.Goal{TargetAmount: core.Money{Cents: 600000}, Deadline: core.NewDate(2026, 11, 16)}
	for i := 0; i < n; i++ {
		m := core.Cash
		if i%2 == 1 {
			m = core.UPI
		}
		g.Contributions = append(g.Contributions, core.Contribution{
			Amount: core.Money{Cents: int64(100+i) * 100},
			Method: m,
			Date:   now.Add(time.Duration(i) * time.Hour),
		})
	}
	g.SavedAmount = g.Sum()
	return g
}

func newTestCoach(c Completer, s *fakeSleeper, opts ...Option) *Coach {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: FixedBackoff(1200 * time.Millisecond), Sleep: s.Sleep}
	return NewCoach(c, append([]Option{WithRetry(policy), WithClock(func() time.Time { return now })}, opts...)...)
}

func TestAnalyzeRefusesWithFewContributions(t *testing.T) {
	fc := &fakeCompleter{text: "never"}
	coach := newTestCoach(fc, &fakeSleeper{})

	_, err := coach.Analyze(context.Background(), goalWith(4))
	if !errors.Is(err, core.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if fc.calls != 0 {
		t.Fatalf("completer called %d times, want 0", fc.calls)
	}
	if got := Message("", err); got != TooFewText {
		t.Fatalf("Message = %q", got)
	}
}

func TestAnalyzeBuildsPayload(t *testing.T) {
	fc := &fakeCompleter{text: "  Forensic Analysis: keep it up.  "}
	coach := newTestCoach(fc, &fakeSleeper{})

	msg, err := coach.Analyze(context.Background(), goalWith(12))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if msg != "Forensic Analysis: keep it up." {
		t.Fatalf("msg = %q", msg)
	}

	req := fc.requests[0]
	if len(req.Contents) != 2 || req.Contents[0].Parts[0].Text != SystemPrompt {
		t.Fatalf("unexpected payload: %+v", req)
	}
	query := req.Contents[1].Parts[0].Text
	if strings.Count(query, "Amount: ₹") != AnalysisWindow {
		t.Fatalf("query should carry the last %d drops:\n%s", AnalysisWindow, query)
	}
	// Contributions 0 and 1 fall outside the window.
	if strings.Contains(query, "Amount: ₹100,") || !strings.Contains(query, "Amount: ₹111, Method: UPI") {
		t.Fatalf("wrong window:\n%s", query)
	}
	if !strings.Contains(query, "Insight: UPI drops are larger!") {
		t.Fatalf("missing exposure insight:\n%s", query)
	}
	if !strings.Contains(query, "'Forensic Analysis:'") {
		t.Fatalf("missing instruction:\n%s", query)
	}
}

func TestAnalyzeInsightPlaceholder(t *testing.T) {
	g := goalWith(5)
	for i := range g.Contributions {
		g.Contributions[i].Method = core.Cash
	}
	if q := AnalysisPrompt(g); !strings.Contains(q, "Insight: No behavioral insight yet.") {
		t.Fatalf("expected placeholder insight:\n%s", q)
	}
}

func TestAnalyzeEmptyTextIsInconclusive(t *testing.T) {
	coach := newTestCoach(&fakeCompleter{text: ""}, &fakeSleeper{})
	msg, err := coach.Analyze(context.Background(), goalWith(5))
	if err != nil || msg != InconclusiveText {
		t.Fatalf("got %q, %v", msg, err)
	}
}

func TestRetryRecoversAndSleepsBetweenAttempts(t *testing.T) {
	fc := &fakeCompleter{failures: 2, text: "ok"}
	sl := &fakeSleeper{}
	coach := newTestCoach(fc, sl)

	msg, err := coach.Analyze(context.Background(), goalWith(5))
	if err != nil || msg != "ok" {
		t.Fatalf("got %q, %v", msg, err)
	}
	if fc.calls != 3 {
		t.Fatalf("calls = %d, want 3", fc.calls)
	}
	if len(sl.delays) != 2 || sl.delays[0] != 1200*time.Millisecond {
		t.Fatalf("delays = %v", sl.delays)
	}
}

func TestRetryExhaustion(t *testing.T) {
	fc := &fakeCompleter{failures: 10}
	sl := &fakeSleeper{}
	coach := newTestCoach(fc, sl)

	_, err := coach.Analyze(context.Background(), goalWith(5))
	if !errors.Is(err, core.ErrAnalysisUnavailable) {
		t.Fatalf("err = %v, want ErrAnalysisUnavailable", err)
	}
	if fc.calls != 3 {
		t.Fatalf("calls = %d, want 3", fc.calls)
	}
	if len(sl.delays) != 2 {
		t.Fatalf("no delay after the last attempt expected, got %v", sl.delays)
	}
	if got := Message("", err); got != NetworkErrorText {
		t.Fatalf("Message = %q", got)
	}
}

func TestRetryReportsEachFailureToPolicyHook(t *testing.T) {
	var attempts []int
	sl := &fakeSleeper{}
	policy := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     FixedBackoff(time.Second),
		Sleep:       sl.Sleep,
		OnFailure:   func(attempt int, _ error) { attempts = append(attempts, attempt) },
	}
	fc := &fakeCompleter{failures: 2, text: "ok"}
	coach := NewCoach(fc, WithRetry(policy), WithClock(func() time.Time { return now }))

	if _, err := coach.Analyze(context.Background(), goalWith(5)); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("hook saw attempts %v, want [1 2]", attempts)
	}
}

func TestFailedIgnoresInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"success", nil, false},
		{"too few contributions", ErrTooFewContributions, false},
		{"no active goal", ErrNoActiveGoal, false},
		{"unavailable", core.ErrAnalysisUnavailable, true},
		{"other", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Failed(tt.err); got != tt.want {
				t.Errorf("Failed(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryStopsOnCancelledSleep(t *testing.T) {
	calls := 0
	policy := RetryPolicy{
		MaxAttempts: 5,
		Backoff:     FixedBackoff(time.Second),
		Sleep: func(context.Context, time.Duration) error {
			return context.Canceled
		},
	}
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestNotConfiguredFailsFast(t *testing.T) {
	sl := &fakeSleeper{}
	coach := newTestCoach(NotConfigured, sl)

	_, err := coach.Analyze(context.Background(), goalWith(5))
	if !errors.Is(err, core.ErrAnalysisUnavailable) || !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if len(sl.delays) != 0 {
		t.Fatalf("permanent errors must not be retried, slept %v", sl.delays)
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(time.Second, 5*time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b(i + 1); got != w {
			t.Fatalf("attempt %d: %v, want %v", i+1, got, w)
		}
	}
	if FixedBackoff(time.Millisecond)(7) != time.Millisecond {
		t.Fatal("fixed backoff should not grow")
	}
}

func TestMotivate(t *testing.T) {
	fc := &fakeCompleter{text: "You got this."}
	coach := newTestCoach(fc, &fakeSleeper{})

	if _, err := coach.Motivate(context.Background(), core.Goal{}); !errors.Is(err, ErrNoActiveGoal) {
		t.Fatalf("err = %v, want ErrNoActiveGoal", err)
	}
	if fc.calls != 0 {
		t.Fatal("no call expected without a goal")
	}

	msg, err := coach.Motivate(context.Background(), goalWith(2))
	if err != nil || msg != "You got this." {
		t.Fatalf("got %q, %v", msg, err)
	}
	query := fc.requests[0].Contents[1].Parts[0].Text
	for _, want := range []string{"Goal: ₹6,000 by 2026-11-16", "Weeks left: 3.9", "Weekly target: ₹1,4"} {
		if !strings.Contains(query, want) {
			t.Fatalf("prompt missing %q:\n%s", want, query)
		}
	}
}

func TestCacheServesRepeatedRequests(t *testing.T) {
	fc := &fakeCompleter{text: "cached"}
	coach := newTestCoach(fc, &fakeSleeper{}, WithCache(time.Minute))
	g := goalWith(5)

	for i := 0; i < 3; i++ {
		if msg, err := coach.Analyze(context.Background(), g); err != nil || msg != "cached" {
			t.Fatalf("got %q, %v", msg, err)
		}
	}
	if fc.calls != 1 {
		t.Fatalf("calls = %d, want 1", fc.calls)
	}
	if coach.Cache() == nil || coach.Cache().Size() != 1 {
		t.Fatal("expected one cached message")
	}
}

func TestConcurrentDuplicatesShareOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := CompleterFunc(func(ctx context.Context, _ Request) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	})
	coach := newTestCoach(slow, &fakeSleeper{}, WithCache(time.Minute))
	g := goalWith(5)

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = coach.Analyze(context.Background(), g)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	for _, r := range results {
		if r != "shared" {
			t.Fatalf("results = %v", results)
		}
	}
}

func TestHTTPCompleter(t *testing.T) {
	var gotKey string
	var gotBody Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"hi there"}]}}]}`)
	}))
	defer srv.Close()

	c := NewHTTPCompleter(srv.URL, "secret", time.Second)
	text, err := c.Complete(context.Background(), NewRequest("a", "b"))
	if err != nil || text != "hi there" {
		t.Fatalf("got %q, %v", text, err)
	}
	if gotKey != "secret" || len(gotBody.Contents) != 2 || gotBody.Contents[1].Role != RoleUser {
		t.Fatalf("key %q body %+v", gotKey, gotBody)
	}
}

func TestHTTPCompleterFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":"busy"}`},
		{"malformed body", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewHTTPCompleter(srv.URL, "", time.Second).Complete(context.Background(), NewRequest("x"))
			if err == nil {
				t.Fatal("expected an error")
			}
			var se *StatusError
			if tt.status != http.StatusOK && (!errors.As(err, &se) || se.StatusCode != tt.status) {
				t.Fatalf("err = %v, want StatusError %d", err, tt.status)
			}
		})
	}
}

func TestResponseText(t *testing.T) {
	if (Response{}).Text() != "" {
		t.Fatal("empty response should yield empty text")
	}
	r := Response{Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: "x"}, {Text: "y"}}}}}}
	if r.Text() != "x" {
		t.Fatalf("Text = %q", r.Text())
	}
}
