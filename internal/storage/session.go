package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"saveup/internal/core"
)

// SessionKey is the slot whose presence marks a logged-in session.
const SessionKey = "saveup_session"

// Session is the device-local login flag. It is not authentication: any
// caller that can write the slot is "logged in".
type Session struct {
	kv KV
}

func NewSession(kv KV) *Session {
	return &Session{kv: kv}
}

// Start writes a fresh token and returns it.
func (s *Session) Start(ctx context.Context) (string, error) {
	token := uuid.NewString()
	if err := s.kv.Set(ctx, SessionKey, []byte(token)); err != nil {
		return "", fmt.Errorf("%w: start session: %v", core.ErrStorage, err)
	}
	return token, nil
}

// Active reports whether the flag is present. Read errors count as logged out.
func (s *Session) Active(ctx context.Context) bool {
	b, err := s.kv.Get(ctx, SessionKey)
	return err == nil && len(b) > 0
}

// Token returns the current token, or ErrNotFound when logged out.
func (s *Session) Token(ctx context.Context) (string, error) {
	b, err := s.kv.Get(ctx, SessionKey)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", ErrNotFound
	}
	return string(b), nil
}

// End clears the flag. Ending a session that does not exist is not an error.
func (s *Session) End(ctx context.Context) error {
	if err := s.kv.Delete(ctx, SessionKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: end session: %v", core.ErrStorage, err)
	}
	return nil
}
