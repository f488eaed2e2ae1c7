package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"saveup/internal/core"
	"saveup/internal/log"
)

// GoalKey is the slot holding the persisted goal.
const GoalKey = "saveupSavings"

// GoalStore reads and writes the goal slot. Loading never fails hard: a
// missing slot yields the empty goal and a corrupt one yields the empty goal
// plus an ErrStorage error for the caller to log.
type GoalStore struct {
	kv     KV
	logger *log.Logger
}

func NewGoalStore(kv KV, logger *log.Logger) *GoalStore {
	if logger == nil {
		logger = log.Discard()
	}
	return &GoalStore{kv: kv, logger: logger.WithComponent(log.ComponentStorage)}
}

// storedGoal mirrors core.Goal but keeps every field raw so each one can be
// coerced on its own.
type storedGoal struct {
	TargetAmount  json.RawMessage `json:"targetAmount"`
	Deadline      json.RawMessage `json:"deadline"`
	SavedAmount   json.RawMessage `json:"savedAmount"`
	Contributions json.RawMessage `json:"contributions"`
}

type storedContribution struct {
	Amount json.RawMessage `json:"amount"`
	Method string          `json:"method"`
	Date   string          `json:"date"`
}

// Load returns the persisted goal.
func (s *GoalStore) Load(ctx context.Context) (core.Goal, error) {
	raw, err := s.kv.Get(ctx, GoalKey)
	if errors.Is(err, ErrNotFound) {
		return core.Goal{}, nil
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	g, err := s.decode(raw)
	if err != nil {
		return core.Goal{}, fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	return g, nil
}

func (s *GoalStore) decode(raw []byte) (core.Goal, error) {
	var sg storedGoal
	if err := json.Unmarshal(raw, &sg); err != nil {
		return core.Goal{}, fmt.Errorf("decode %s: %w", GoalKey, err)
	}

	var entries []json.RawMessage
	if len(sg.Contributions) > 0 && json.Unmarshal(sg.Contributions, &entries) != nil {
		s.logger.Warn("Contributions field is not a list, ignoring it", log.FieldStorageKey, GoalKey)
	}

	g := core.Goal{
		TargetAmount:  coerceMoney(sg.TargetAmount),
		Contributions: make([]core.Contribution, 0, len(entries)),
	}
	if g.TargetAmount.Cents < 0 {
		g.TargetAmount = core.Money{}
	}

	var deadline string
	if json.Unmarshal(sg.Deadline, &deadline) == nil {
		if d, err := core.ParseDate(deadline); err == nil {
			g.Deadline = d
		}
	}

	dropped := 0
	for _, rc := range entries {
		c, ok := coerceContribution(rc)
		if !ok {
			dropped++
			continue
		}
		g.Contributions = append(g.Contributions, c)
	}
	if dropped > 0 {
		s.logger.Warn("Dropped invalid contributions on load", "dropped", dropped)
	}

	stored := coerceMoney(sg.SavedAmount)
	g.SavedAmount = g.Sum()
	if stored != g.SavedAmount {
		s.logger.Warn("Stored saved amount disagrees with contributions, recomputed",
			"stored", stored.Rupees(),
			log.FieldSaved, g.SavedAmount.Rupees())
	}
	return g, nil
}

func coerceContribution(raw json.RawMessage) (core.Contribution, bool) {
	var sc storedContribution
	if err := json.Unmarshal(raw, &sc); err != nil {
		return core.Contribution{}, false
	}
	method, err := core.ParseMethod(sc.Method)
	if err != nil {
		return core.Contribution{}, false
	}
	c := core.Contribution{Amount: coerceMoney(sc.Amount), Method: method}
	if c.Amount.Validate() != nil {
		return core.Contribution{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, sc.Date); err == nil {
		c.Date = t
	}
	return c, true
}

// coerceMoney turns a JSON number or numeric string into Money; anything
// else is zero.
func coerceMoney(raw json.RawMessage) core.Money {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return core.Money{}
	}
	switch x := v.(type) {
	case float64:
		return core.FromRupees(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return core.Money{}
		}
		return core.FromRupees(f)
	default:
		return core.Money{}
	}
}

// Save writes g to the slot.
func (s *GoalStore) Save(ctx context.Context, g core.Goal) error {
	if g.Contributions == nil {
		g.Contributions = []core.Contribution{}
	}
	b, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("%w: encode goal: %v", core.ErrStorage, err)
	}
	if err := s.kv.Set(ctx, GoalKey, b); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	s.logger.Debug("Goal saved", log.FieldStorageKey, GoalKey, log.FieldContributions, len(g.Contributions))
	return nil
}

// Clear removes the slot; the next Load returns the empty goal.
func (s *GoalStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, GoalKey); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	return nil
}
