package tracker

import (
	"time"

	"saveup/internal/core"
)

type EventKind string

const (
	GoalSet           EventKind = "goal_set"
	GoalEdited        EventKind = "goal_edited"
	ContributionAdded EventKind = "contribution_added"
)

// Event describes a successful mutation. Goal is a snapshot taken right after
// it; Contribution is set only for ContributionAdded.
type Event struct {
	Kind         EventKind
	Goal         core.Goal
	Contribution *core.Contribution
	At           time.Time
}

// Listener is called synchronously after every mutation, outside the
// tracker's lock.
type Listener func(Event)

// Subscribe registers fn and returns a function that removes it.
func (t *Tracker) Subscribe(fn Listener) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) publish(ev Event) {
	t.mu.Lock()
	fns := make([]Listener, 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
