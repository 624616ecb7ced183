// Package api provides HTTP handlers for the sparkweek API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/sparkweek/internal/app"
	"github.com/ashureev/sparkweek/internal/catalog"
	"github.com/ashureev/sparkweek/internal/config"
	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/progression"
	"github.com/ashureev/sparkweek/internal/relay"
	"github.com/ashureev/sparkweek/internal/tier"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Catalog is the read side of the experience catalog the handlers need.
type Catalog interface {
	Get(id string) (*domain.Experience, error)
	Resolve(ids []string) []domain.Experience
}

// Guide answers free-form questions about the current step.
type Guide interface {
	StepGuidance(ctx context.Context, sc relay.StepContext, history []domain.Message, text string) string
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes a Handler. Zero values take the defaults.
type Options struct {
	AIEnabled          bool
	Model              string
	PackageSize        int
	MinMessages        int
	MaxRequestBodySize int64
	KeepaliveInterval  time.Duration
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	AllowedOrigins     []string
	IsDevelopment      bool
	Now                func() time.Time
}

// OptionsFromConfig maps application configuration onto handler options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AIEnabled:          cfg.Relay.Enabled(),
		Model:              cfg.Relay.Model,
		PackageSize:        cfg.Discovery.PackageSize,
		MinMessages:        cfg.Discovery.MinMessages,
		MaxRequestBodySize: cfg.SSE.MaxRequestBodySize,
		KeepaliveInterval:  cfg.SSE.KeepaliveInterval,
		RateLimitRequests:  cfg.RateLimit.RequestsPerWindow,
		RateLimitWindow:    cfg.RateLimit.WindowDuration,
		AllowedOrigins:     cfg.CORSOrigins,
		IsDevelopment:      cfg.IsDevelopment(),
	}
}

// Handler serves the application API.
type Handler struct {
	svc         *app.Service
	catalog     Catalog
	guide       Guide
	health      Pinger
	gate        tier.Gate
	rateLimiter *RateLimiter
	opts        Options
}

// NewHandler creates a handler. Call Close to stop the rate limiter.
func NewHandler(svc *app.Service, cat Catalog, guide Guide, health Pinger, opts Options) *Handler {
	if opts.MaxRequestBodySize <= 0 {
		opts.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 10 * time.Second
	}
	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = 20
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		svc:         svc,
		catalog:     cat,
		guide:       guide,
		health:      health,
		rateLimiter: NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow),
		opts:        opts,
	}
}

// Close stops background work owned by the handler.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// RegisterRoutes registers every API route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/state", h.GetState)
		r.Post("/start", h.Start)
		r.Post("/dashboard", h.Dashboard)
		r.Post("/week/renew", h.RenewWeek)
		r.Post("/rediscover", h.Rediscover)
		r.Post("/upgrade", h.Upgrade)
		r.Post("/logout", h.Logout)

		r.Route("/discovery", func(r chi.Router) {
			r.Get("/", h.GetDiscovery)
			r.Post("/messages", h.SendMessage)
			r.Post("/skip", h.SkipDiscovery)
			r.Get("/events", h.Events)
		})

		r.Get("/experiences/{id}", h.GetExperience)
		r.Post("/experiences/{id}/select", h.SelectExperience)
	})

	r.Get("/ws/experiences/{id}", h.ExperienceSession)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps application errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, userID string) {
	switch {
	case errors.Is(err, app.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, app.ErrNoProfile):
		Error(w, http.StatusConflict, "no_profile")
	case errors.Is(err, app.ErrNoDiscovery), errors.Is(err, app.ErrDiscoveryClosed):
		Error(w, http.StatusConflict, "no_discovery")
	case errors.Is(err, catalog.ErrNotFound):
		Error(w, http.StatusNotFound, "experience not found")
	case errors.Is(err, tier.ErrModeNotAllowed):
		Error(w, http.StatusForbidden, "mode_not_allowed")
	case errors.Is(err, progression.ErrNotStarted), errors.Is(err, progression.ErrWrongMode):
		Error(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Request failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a size-limited JSON body into v.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
