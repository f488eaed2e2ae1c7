// Package proxy forwards completion requests to the upstream
// generateContent endpoint so that the API key never reaches the browser.
package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"saveup/internal/log"
	"saveup/internal/middleware/ratelimit"
)

const (
	// Path is where the proxy is mounted.
	Path = "/api/analyze"

	maxRequestBody  = 1 << 20
	maxUpstreamBody = 8 << 20
)

var (
	statusBody   = map[string]string{"message": "API is working..."}
	internalBody = map[string]string{"error": "Internal Server Error"}
)

// Handler relays POST bodies to the upstream URL and the upstream status and
// JSON body back to the caller. It keeps no state between requests.
type Handler struct {
	upstream string
	apiKey   string
	client   *http.Client
	logger   *log.Logger
}

// New builds a handler. A zero timeout leaves the client without a deadline.
func New(upstream, apiKey string, timeout time.Duration, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Handler{
		upstream: upstream,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.WithComponent(log.ComponentProxy),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, statusBody)
	case http.MethodPost:
		h.forward(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method Not Allowed"})
	}
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With(log.FieldOperation, log.OpForward)
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		logger.WarnContext(ctx, "Failed to read request body", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, internalBody)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.upstream, bytes.NewReader(body))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build upstream request", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, internalBody)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "Upstream request failed", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, internalBody)
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err == nil && !json.Valid(raw) {
		err = errors.New("upstream body is not JSON")
	}
	if err != nil {
		logger.ErrorContext(ctx, "Unusable upstream response",
			log.FieldStatusCode, resp.StatusCode,
			log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, internalBody)
		return
	}

	logger.InfoContext(ctx, "Relayed upstream response",
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MountOptions configures the middleware in front of the handler.
type MountOptions struct {
	// AllowedOrigins enables CORS for the listed origins; empty disables it.
	AllowedOrigins []string
	// Limiter, when set, rate limits requests per client IP.
	Limiter  *ratelimit.Limiter
	ClientIP func(*http.Request) string
}

// Mount registers h at Path on r.
func Mount(r chi.Router, h http.Handler, opts MountOptions) {
	var mws []func(http.Handler) http.Handler
	if len(opts.AllowedOrigins) > 0 {
		mws = append(mws, cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}
	if opts.Limiter != nil && opts.ClientIP != nil {
		mws = append(mws, opts.Limiter.Middleware(opts.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too Many Requests"})
		}))
	}
	r.With(mws...).Handle(Path, h)
}
