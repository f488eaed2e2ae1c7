package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"saveup/internal/core"
)

// message is one line of feedback shown on the next dashboard render.
type message struct {
	Text  string
	Error bool
}

// flashes holds feedback between a form POST and the redirected GET. There is
// one user per process, so a single slot per kind is enough.
type flashes struct {
	mu     sync.Mutex
	notice *message
	coach  *message
}

func (f *flashes) setNotice(m message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notice = &m
}

func (f *flashes) setCoach(m message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coach = &m
}

// pop returns and clears both slots.
func (f *flashes) pop() (notice, coach *message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	notice, coach = f.notice, f.coach
	f.notice, f.coach = nil, nil
	return notice, coach
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInsufficientData):
		return http.StatusConflict
	case errors.Is(err, core.ErrAnalysisUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage turns a validation error into the text shown next to the form.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingDeadline):
		return "Please pick a deadline."
	case errors.Is(err, core.ErrPastDeadline):
		return "The deadline cannot be in the past."
	case errors.Is(err, core.ErrInvalidMethod):
		return "Choose Cash or UPI."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Enter an amount greater than zero."
	case errors.Is(err, core.ErrInvalidInput):
		return "Please check the values and try again."
	default:
		return "Something went wrong. Try again."
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
