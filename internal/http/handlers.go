package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"saveup/internal/analysis"
	"saveup/internal/core"
	"saveup/internal/log"
	"saveup/internal/metrics"
	"saveup/internal/storage"
	"saveup/internal/tracker"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).String(),
	})
}

// handleReady reports whether templates are loaded and the storage slot can
// be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.session.Token(ctx); err != nil && !errors.Is(err, storage.ErrNotFound) {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	g := s.tracker.Goal()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP rate_limit_clients Clients tracked by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_clients gauge\n")
	fmt.Fprintf(w, "rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Requests rejected as probing\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.securityDetector.SuspiciousCount())

	if c := s.coach.Cache(); c != nil {
		st := c.Stats()
		fmt.Fprintf(w, "# HELP coach_cache_hits_total Coach messages served from cache\n")
		fmt.Fprintf(w, "# TYPE coach_cache_hits_total counter\n")
		fmt.Fprintf(w, "coach_cache_hits_total %d\n\n", st.Hits)
		fmt.Fprintf(w, "# HELP coach_cache_misses_total Coach lookups that needed a completion\n")
		fmt.Fprintf(w, "# TYPE coach_cache_misses_total counter\n")
		fmt.Fprintf(w, "coach_cache_misses_total %d\n\n", st.Misses)
	}

	fmt.Fprintf(w, "# HELP saveup_contributions Contributions logged for the current goal\n")
	fmt.Fprintf(w, "# TYPE saveup_contributions gauge\n")
	fmt.Fprintf(w, "saveup_contributions %d\n\n", len(g.Contributions))

	fmt.Fprintf(w, "# HELP saveup_progress_percent Progress toward the current goal\n")
	fmt.Fprintf(w, "# TYPE saveup_progress_percent gauge\n")
	fmt.Fprintf(w, "saveup_progress_percent %.1f\n", metrics.Progress(g))
}

// handleIndex renders the dashboard, or the login page without a session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !s.session.Active(r.Context()) {
		s.render(w, r, http.StatusOK, "login.html", nil)
		return
	}
	p := s.page()
	p.Flash, p.Coach = s.flash.pop()
	s.render(w, r, http.StatusOK, "index.html", p)
}

func (s *Server) page() pageData {
	p := newPageData(s.tracker.Goal(), s.now())
	policy := s.tracker.Policy()
	p.RequireFuture = policy.RequireFutureDeadline
	p.QuickAddSelected = policy.QuickAddMethod == tracker.QuickAddSelected
	return p
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name)
	}
}

// renderInvalid re-renders the dashboard with the validation error so the
// user sees it without losing the page.
func (s *Server) renderInvalid(w http.ResponseWriter, r *http.Request, err error) {
	p := s.page()
	p.Flash = &message{Text: userMessage(err), Error: true}
	s.render(w, r, statusFor(err), "index.html", p)
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Start(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to start session", log.FieldError, err)
		http.Error(w, "could not start session", http.StatusInternalServerError)
		return
	}
	s.redirectHome(w, r)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.End(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to end session", log.FieldError, err)
		http.Error(w, "could not end session", http.StatusInternalServerError)
		return
	}
	s.redirectHome(w, r)
}

// handleState returns the goal and its derived metrics as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	g := s.tracker.Goal()
	writeJSON(w, http.StatusOK, stateResponse{Goal: g, Summary: metrics.Compute(g, s.now())})
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	target, err := core.ParseAmount(sanitizeInput(r.PostForm.Get("target")))
	if err != nil {
		s.renderInvalid(w, r, err)
		return
	}
	deadline, err := core.ParseDate(sanitizeInput(r.PostForm.Get("deadline")))
	if err != nil {
		s.renderInvalid(w, r, err)
		return
	}

	wasActive := s.tracker.Goal().Active()
	if err := s.tracker.SetOrEditGoal(r.Context(), target, deadline); err != nil {
		s.renderInvalid(w, r, err)
		return
	}
	text := "Goal set! Time to start dropping."
	if wasActive {
		text = "Goal updated."
	}
	s.flash.setNotice(message{Text: text})
	s.redirectHome(w, r)
}

func (s *Server) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	s.addContribution(w, r, s.tracker.AddContribution)
}

func (s *Server) handleQuickAdd(w http.ResponseWriter, r *http.Request) {
	s.addContribution(w, r, s.tracker.QuickAdd)
}

func (s *Server) addContribution(w http.ResponseWriter, r *http.Request, add func(context.Context, core.Money, core.Method) error) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	amount, err := core.ParseAmount(sanitizeInput(r.PostForm.Get("amount")))
	if err != nil {
		s.renderInvalid(w, r, err)
		return
	}
	method := core.Cash
	if v := sanitizeInput(r.PostForm.Get("method")); v != "" {
		if method, err = core.ParseMethod(v); err != nil {
			s.renderInvalid(w, r, err)
			return
		}
	}
	if err := add(r.Context(), amount, method); err != nil {
		s.renderInvalid(w, r, err)
		return
	}
	s.flash.setNotice(message{Text: fmt.Sprintf("Dropped ₹%s. Nice!", amount)})
	s.redirectHome(w, r)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	s.coachMessage(w, r, log.OpAnalyze, s.coach.Analyze)
}

func (s *Server) handleMotivation(w http.ResponseWriter, r *http.Request) {
	s.coachMessage(w, r, log.OpMotivate, s.coach.Motivate)
}

func (s *Server) coachMessage(w http.ResponseWriter, r *http.Request, op string, generate func(context.Context, core.Goal) (string, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), s.coachTimeout)
	defer cancel()

	text, err := generate(ctx, s.tracker.Goal())
	failed := analysis.Failed(err)
	if failed {
		log.FromContext(ctx).WarnContext(ctx, "Coach request failed",
			log.FieldOperation, op,
			log.FieldError, err)
	}
	s.flash.setCoach(message{Text: analysis.Message(text, err), Error: failed})
	s.redirectHome(w, r)
}
