// Package http serves the SaveUp dashboard, its JSON state API and,
// optionally, the analysis proxy.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"saveup/internal/analysis"
	"saveup/internal/log"
	"saveup/internal/middleware/ratelimit"
	"saveup/internal/middleware/security"
	"saveup/internal/middleware/trace"
	"saveup/internal/proxy"
	"saveup/internal/storage"
	"saveup/internal/tracker"
	appweb "saveup/web"
)

const (
	staticMaxAge = 3600

	writeTimeout = 90 * time.Second
	// DefaultCoachTimeout bounds a whole coach request, retries included,
	// so the redirect is written before writeTimeout closes the connection.
	DefaultCoachTimeout = 75 * time.Second
)

// Deps are the components the server presents. Proxy is optional.
type Deps struct {
	Tracker *tracker.Tracker
	Session *storage.Session
	Coach   *analysis.Coach
	Proxy   http.Handler
	Logger  *log.Logger

	RateLimitPerMinute int
	AllowedOrigins     []string
	Clock              func() time.Time
	// CoachTimeout defaults to, and is capped at, DefaultCoachTimeout.
	CoachTimeout time.Duration
}

type Server struct {
	http.Server
	templates *template.Template

	tracker *tracker.Tracker
	session *storage.Session
	coach   *analysis.Coach
	now     func() time.Time

	coachTimeout time.Duration
	logger  *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	flash            flashes

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	coachTimeout := deps.CoachTimeout
	if coachTimeout <= 0 || coachTimeout > DefaultCoachTimeout {
		coachTimeout = DefaultCoachTimeout
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		tracker:          deps.Tracker,
		session:          deps.Session,
		coach:            deps.Coach,
		now:              now,
		coachTimeout:     coachTimeout,
		logger:           logger.WithComponent(log.ComponentHTTP),
		securityDetector: security.NewDetector(),
		started:          now(),
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute})
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes(deps)
	return s
}

func (s *Server) routes(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		s.traceMiddleware.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.securityDetector.Middleware,
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(staticMaxAge)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limit := s.rateLimiter.Middleware(s.securityDetector.ClientIP, nil)

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/", s.handleIndex)
		r.With(s.requireSessionJSON).Get("/api/state", s.handleState)

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)
				r.Post("/goal", s.handleSetGoal)
				r.Post("/contributions", s.handleAddContribution)
				r.Post("/quick-add", s.handleQuickAdd)
				r.Post("/analysis", s.handleAnalysis)
				r.Post("/motivation", s.handleMotivation)
			})
		})
	})

	if deps.Proxy != nil {
		proxy.Mount(r, deps.Proxy, proxy.MountOptions{
			AllowedOrigins: deps.AllowedOrigins,
			Limiter:        s.rateLimiter,
			ClientIP:       s.securityDetector.ClientIP,
		})
	}

	return r
}

// requireSession sends visitors without a session back to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.Active(r.Context()) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSessionJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.Active(r.Context()) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
