package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"saveup/internal/log"
	"saveup/internal/middleware/ratelimit"
	"saveup/internal/middleware/security"
	"saveup/internal/middleware/trace"
	"saveup/internal/proxy"
)

// ProxyDeps configures a standalone analysis proxy.
type ProxyDeps struct {
	Handler            http.Handler
	Logger             *log.Logger
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// ProxyServer serves only the analysis proxy and health checks. It keeps no
// user state.
type ProxyServer struct {
	http.Server
	rateLimiter  *ratelimit.Limiter
	shutdownOnce sync.Once
}

func NewProxyServer(addr string, deps ProxyDeps) *ProxyServer {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector := security.NewDetector()
	s := &ProxyServer{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
	}

	r := chi.NewRouter()
	r.Use(
		trace.NewMiddleware(logger, detector.ClientIP).Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		detector.Middleware,
	)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	proxy.Mount(r, deps.Handler, proxy.MountOptions{
		AllowedOrigins: deps.AllowedOrigins,
		Limiter:        s.rateLimiter,
		ClientIP:       detector.ClientIP,
	})
	s.Handler = r
	return s
}

func (s *ProxyServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
