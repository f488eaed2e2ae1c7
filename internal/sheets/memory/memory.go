// Package memory is an in-process contribution sheet used by tests and by
// `saveup export --dry-run`.
package memory

import (
	"context"
	"fmt"
	"sync"

	"saveup/internal/core"
	"saveup/internal/sheets"
)

var _ sheets.ContributionStore = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	items []core.Contribution
}

func New(seed ...core.Contribution) *Store {
	return &Store{items: append([]core.Contribution(nil), seed...)}
}

// AppendContributions stores the rows and returns a synthetic row reference.
func (s *Store) AppendContributions(_ context.Context, cs []core.Contribution) (string, error) {
	for _, c := range cs {
		if err := c.Amount.Validate(); err != nil {
			return "", err
		}
		if err := c.Method.Validate(); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.items) + 1
	s.items = append(s.items, cs...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.items)), nil
}

func (s *Store) ListContributions(_ context.Context) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Contribution(nil), s.items...), nil
}
