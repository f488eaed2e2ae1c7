// Package tracker owns the savings goal and is the only place it is mutated.
//
// A Tracker is in one of two states: no goal (target of zero) or an active
// goal. Submitting a goal while none is active starts a fresh history;
// submitting one while a goal is active only edits target and deadline.
// Every successful mutation is persisted and announced to subscribers.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"saveup/internal/core"
	"saveup/internal/log"
)

// QuickAddMode decides which method a quick-add drop is recorded with.
type QuickAddMode string

const (
	// QuickAddCash records every quick-add drop as cash.
	QuickAddCash QuickAddMode = "cash"
	// QuickAddSelected honours the method the caller selected.
	QuickAddSelected QuickAddMode = "selected"
)

// ParseQuickAddMode accepts "cash" or "selected"; anything else is cash.
func ParseQuickAddMode(s string) QuickAddMode {
	if QuickAddMode(s) == QuickAddSelected {
		return QuickAddSelected
	}
	return QuickAddCash
}

// Policy holds the behaviour switches that differ between deployments.
type Policy struct {
	RequireFutureDeadline bool
	QuickAddMethod        QuickAddMode
}

// DefaultPolicy rejects past deadlines and records quick-add drops as cash.
func DefaultPolicy() Policy {
	return Policy{RequireFutureDeadline: true, QuickAddMethod: QuickAddCash}
}

// Store is the persistence the tracker needs.
type Store interface {
	Load(ctx context.Context) (core.Goal, error)
	Save(ctx context.Context, g core.Goal) error
	Clear(ctx context.Context) error
}

type Tracker struct {
	mu        sync.Mutex
	goal      core.Goal
	store     Store
	now       func() time.Time
	policy    Policy
	logger    *log.Logger
	listeners map[int]Listener
	nextID    int
}

type Option func(*Tracker)

// WithClock replaces time.Now, used to stamp contributions and check deadlines.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithPolicy(p Policy) Option {
	return func(t *Tracker) { t.policy = p }
}

func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = l.WithComponent(log.ComponentTracker) }
}

// New returns a tracker holding the empty goal. Call Load to read the
// persisted one.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		now:       time.Now,
		policy:    DefaultPolicy(),
		logger:    log.Discard(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load replaces the in-memory goal with the persisted one. A missing or
// corrupt slot leaves the empty goal in place; the problem is logged, not
// returned.
func (t *Tracker) Load(ctx context.Context) {
	g, err := t.store.Load(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to load saved goal, starting empty",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
	}
	t.mu.Lock()
	t.goal = g
	t.mu.Unlock()
	t.logger.DebugContext(ctx, "Goal loaded",
		log.NewFields().WithGoal(g.TargetAmount.Rupees(), g.SavedAmount.Rupees(), g.Deadline.String(), len(g.Contributions)).ToSlice()...)
}

// Goal returns a deep copy of the current goal.
func (t *Tracker) Goal() core.Goal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.goal.Clone()
}

// Policy returns the policy the tracker enforces.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Now returns the tracker clock's current time.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// SetOrEditGoal creates a goal when none is active and edits target and
// deadline otherwise.
func (t *Tracker) SetOrEditGoal(ctx context.Context, target core.Money, deadline core.Date) error {
	if err := t.validateGoal(target, deadline); err != nil {
		t.logger.WarnContext(ctx, "Rejected goal",
			log.FieldOperation, log.OpSetGoal,
			log.FieldTarget, target.Rupees(),
			log.FieldDeadline, deadline.String(),
			log.FieldError, err)
		return err
	}

	t.mu.Lock()
	kind := GoalEdited
	if !t.goal.Active() {
		kind = GoalSet
		t.goal.SavedAmount = core.Money{}
		t.goal.Contributions = []core.Contribution{}
	}
	t.goal.TargetAmount = target
	t.goal.Deadline = deadline
	ev := t.commit(ctx, kind, nil)
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "Goal saved",
		log.FieldOperation, string(kind),
		log.FieldTarget, target.Rupees(),
		log.FieldDeadline, deadline.String())
	t.publish(ev)
	return nil
}

func (t *Tracker) validateGoal(target core.Money, deadline core.Date) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if deadline.IsEmpty() {
		return core.ErrMissingDeadline
	}
	if t.policy.RequireFutureDeadline && deadline.Before(core.DateOf(t.now()).Time) {
		return fmt.Errorf("%w: %s", core.ErrPastDeadline, deadline)
	}
	return nil
}

// AddContribution appends a drop stamped with the tracker clock.
func (t *Tracker) AddContribution(ctx context.Context, amount core.Money, method core.Method) error {
	c := core.Contribution{Amount: amount, Method: method}
	if err := c.Validate(); err != nil {
		t.logger.WarnContext(ctx, "Rejected contribution",
			log.FieldOperation, log.OpAddContribution,
			log.FieldAmount, amount.Rupees(),
			log.FieldPayMethod, string(method),
			log.FieldError, err)
		return err
	}

	t.mu.Lock()
	c.Date = t.now()
	t.goal.Contributions = append(t.goal.Contributions, c)
	t.goal.SavedAmount = core.Money{Cents: t.goal.SavedAmount.Cents + c.Amount.Cents}
	ev := t.commit(ctx, ContributionAdded, &c)
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "Contribution added",
		log.NewFields().
			WithOperation(log.OpAddContribution).
			WithContribution(amount.Rupees(), string(method)).
			ToSlice()...)
	t.publish(ev)
	return nil
}

// QuickAdd records a drop from the quick-add control. The policy decides
// whether selected is honoured or the drop is recorded as cash.
func (t *Tracker) QuickAdd(ctx context.Context, amount core.Money, selected core.Method) error {
	method := core.Cash
	if t.policy.QuickAddMethod == QuickAddSelected {
		method = selected
	}
	return t.AddContribution(ctx, amount, method)
}

// Reset clears the persisted slot and returns to the no-goal state.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Clear(ctx); err != nil {
		return err
	}
	t.goal = core.Goal{}
	return nil
}

// commit persists the goal and builds the event for it. Callers hold t.mu.
// Save failures are logged; the in-memory goal stays authoritative.
func (t *Tracker) commit(ctx context.Context, kind EventKind, c *core.Contribution) Event {
	snapshot := t.goal.Clone()
	if err := t.store.Save(ctx, snapshot); err != nil {
		t.logger.ErrorContext(ctx, "Failed to persist goal, keeping in-memory state",
			log.FieldOperation, log.OpSave,
			log.FieldError, err)
	}
	return Event{Kind: kind, Goal: snapshot, Contribution: c, At: t.now()}
}
