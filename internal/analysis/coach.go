package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"saveup/internal/cache"
	"saveup/internal/core"
	"saveup/internal/log"
	"saveup/internal/metrics"
)

const (
	// MinAnalysisContributions is the smallest history worth analysing.
	MinAnalysisContributions = 5

	// AnalysisWindow is how many recent contributions the prompt carries.
	AnalysisWindow = 10

	SystemPrompt = "You are a concise financial coach for students. Give short, practical insights only."

	InconclusiveText   = "Analysis inconclusive. Keep logging drops!"
	MotivationFallback = "Keep going! Every drop brings you closer to your goal."
	NetworkErrorText   = "Oops! Network error during analysis. Try again later."
	TooFewText         = "Log at least 5 contributions first for meaningful AI analysis!"
	NoGoalText         = "Set a savings goal first to get a motivation boost!"
	noInsightYet       = "No behavioral insight yet."
	promptDateLayout   = "2 Jan 2006"
	cacheSize          = 64
)

var (
	ErrTooFewContributions = fmt.Errorf("%w: need at least %d contributions", core.ErrInsufficientData, MinAnalysisContributions)
	ErrNoActiveGoal        = fmt.Errorf("%w: no active goal", core.ErrInsufficientData)
)

// Coach builds prompts from the goal and asks a Completer for coaching text.
// Identical concurrent requests share one completion call.
type Coach struct {
	completer Completer
	retry     RetryPolicy
	now       func() time.Time
	logger    *log.Logger
	cache     *cache.LRUCache[string]
	group     singleflight.Group
}

type Option func(*Coach)

func WithRetry(p RetryPolicy) Option {
	return func(c *Coach) { c.retry = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coach) { c.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coach) { c.logger = l.WithComponent(log.ComponentAnalysis) }
}

// WithCache keeps successful messages for ttl. A ttl of zero disables caching.
func WithCache(ttl time.Duration) Option {
	return func(c *Coach) {
		if ttl > 0 {
			c.cache = cache.NewLRUCache[string](cacheSize, ttl)
		}
	}
}

func NewCoach(completer Completer, opts ...Option) *Coach {
	c := &Coach{
		completer: completer,
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache != nil {
		c.cache.WithClock(c.now)
	}
	return c
}

// Cache returns the message cache, or nil when caching is off.
func (c *Coach) Cache() *cache.LRUCache[string] {
	return c.cache
}

// Analyze asks for one habit insight from the latest contributions.
func (c *Coach) Analyze(ctx context.Context, g core.Goal) (string, error) {
	if len(g.Contributions) < MinAnalysisContributions {
		return "", ErrTooFewContributions
	}
	return c.generate(ctx, log.OpAnalyze, AnalysisPrompt(g), InconclusiveText)
}

// Motivate asks for a short encouragement based on progress.
func (c *Coach) Motivate(ctx context.Context, g core.Goal) (string, error) {
	if !g.Active() {
		return "", ErrNoActiveGoal
	}
	return c.generate(ctx, log.OpMotivate, MotivationPrompt(g, c.now()), MotivationFallback)
}

func (c *Coach) generate(ctx context.Context, op, prompt, fallback string) (string, error) {
	key := op + "\x00" + prompt
	if c.cache != nil {
		if msg, ok := c.cache.Get(key); ok {
			c.logger.DebugContext(ctx, "Serving cached message", log.FieldOperation, op)
			return msg, nil
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.complete(ctx, op, NewRequest(SystemPrompt, prompt))
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.DebugContext(ctx, "Shared in-flight completion", log.FieldOperation, op)
	}

	msg := strings.TrimSpace(v.(string))
	if msg == "" {
		return fallback, nil
	}
	if c.cache != nil {
		c.cache.Set(key, msg)
	}
	return msg, nil
}

func (c *Coach) complete(ctx context.Context, op string, req Request) (string, error) {
	policy := c.retry
	observe := c.retry.OnFailure
	policy.OnFailure = func(attempt int, err error) {
		c.logger.WarnContext(ctx, "Completion attempt failed",
			log.FieldOperation, op,
			log.FieldAttempt, attempt,
			log.FieldMaxAttempts, policy.MaxAttempts,
			log.FieldError, err)
		if observe != nil {
			observe(attempt, err)
		}
	}

	var text string
	start := c.now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		t, err := c.completer.Complete(ctx, req)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Completion unavailable",
			log.FieldOperation, op,
			log.FieldError, err)
		return "", fmt.Errorf("%w: %w", core.ErrAnalysisUnavailable, err)
	}
	c.logger.InfoContext(ctx, "Completion received",
		log.FieldOperation, op,
		log.FieldDuration, c.now().Sub(start).Milliseconds())
	return text, nil
}

// AnalysisPrompt is the query sent for a habit analysis.
func AnalysisPrompt(g core.Goal) string {
	insight := metrics.ExposureOf(g.Contributions)
	status := noInsightYet
	if insight.Sufficient {
		status = insight.String()
	}
	return fmt.Sprintf(`
Analyze these savings drops and identify one spending leak or a strong saving habit.
Give one actionable, practical tip in two sentences, starting with 'Forensic Analysis:'.

Insight: %s
Data: %s
`, status, describe(metrics.Last(g.Contributions, AnalysisWindow)))
}

// MotivationPrompt is the query sent for an encouragement message.
func MotivationPrompt(g core.Goal, now time.Time) string {
	s := metrics.Compute(g, now)
	recent := describe(s.Recent)
	if recent == "" {
		recent = "none yet"
	}
	return fmt.Sprintf(`
Write one short, upbeat sentence motivating a student to keep saving.

Goal: ₹%s by %s
Saved: ₹%s (%.0f%%)
Weeks left: %.1f
Weekly target: ₹%s
Recent drops: %s
`, g.TargetAmount, g.Deadline, g.SavedAmount, s.ProgressPercent, s.WeeksLeft,
		core.FormatRupees(s.WeeklyTarget), recent)
}

func describe(cs []core.Contribution) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("Amount: ₹%s, Method: %s, Date: %s",
			c.Amount, c.Method.Label(), c.Date.Format(promptDateLayout)))
	}
	return strings.Join(parts, "; ")
}

// Failed reports whether err should be shown as an error. Refusals for
// insufficient data are informational.
func Failed(err error) bool {
	return err != nil && !errors.Is(err, core.ErrInsufficientData)
}

// Message maps the result of Analyze or Motivate to the text shown to the
// user. A nil err returns text unchanged.
func Message(text string, err error) string {
	switch {
	case err == nil:
		return text
	case errors.Is(err, ErrTooFewContributions):
		return TooFewText
	case errors.Is(err, ErrNoActiveGoal):
		return NoGoalText
	default:
		return NetworkErrorText
	}
}
