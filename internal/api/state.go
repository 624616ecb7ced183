package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/sparkweek/internal/app"
	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// stateResponse is the application state plus what the current view needs.
type stateResponse struct {
	app.State
	Dashboard  *dashboardView   `json:"dashboard,omitempty"`
	Transcript []domain.Message `json:"transcript,omitempty"`
}

type dashboardView struct {
	Day               int                 `json:"day"`
	TodayExperienceID string              `json:"today_experience_id,omitempty"`
	Expired           bool                `json:"expired"`
	Experiences       []experienceSummary `json:"experiences"`
}

type experienceSummary struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Tagline       string               `json:"tagline"`
	Category      string               `json:"category"`
	Difficulty    domain.Difficulty    `json:"difficulty_level"`
	EstimatedTime domain.EstimatedTime `json:"estimated_time"`
	Budget        string               `json:"budget_level"`
	Steps         int                  `json:"total_steps"`
	HeroImage     string               `json:"hero_image,omitempty"`
}

func summarize(e domain.Experience, _ int) experienceSummary {
	return experienceSummary{
		ID:            e.ID,
		Title:         e.Title,
		Tagline:       e.Tagline,
		Category:      e.Category,
		Difficulty:    e.Difficulty,
		EstimatedTime: e.EstimatedTime,
		Budget:        e.Budget.Level,
		Steps:         e.StepCount(),
		HeroImage:     e.HeroImage,
	}
}

func (h *Handler) respondState(w http.ResponseWriter, st app.State, transcript domain.Transcript) {
	JSON(w, http.StatusOK, stateResponse{
		State:      st,
		Dashboard:  h.dashboard(st, h.opts.Now()),
		Transcript: transcript,
	})
}

func (h *Handler) dashboard(st app.State, now time.Time) *dashboardView {
	pkg := st.Package
	if pkg == nil || st.View == app.ViewLanding || st.View == app.ViewChat {
		return nil
	}
	return &dashboardView{
		Day:               pkg.Day(now),
		TodayExperienceID: pkg.TodayExperienceID(now),
		Expired:           pkg.Status == domain.PackageExpired || pkg.IsExpired(now),
		Experiences:       lo.Map(h.catalog.Resolve(pkg.Experiences), summarize),
	}
}

// GetState returns the user's current state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.Snapshot(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}

	var transcript domain.Transcript
	if st.View == app.ViewChat {
		if d, err := h.svc.Discovery(userID, identity.SessionIDFromContext(r.Context())); err == nil {
			transcript = d.Transcript()
		}
	}
	h.respondState(w, st, transcript)
}

// Start opens the discovery chat for the calling tab.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	st, d, err := h.svc.Start(r.Context(), userID, sessionID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	slog.Info("Discovery started", "user_id", userID, "session_id", sessionID)
	h.respondState(w, st, d.Transcript())
}

// Dashboard returns to the dashboard from an experience.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.BackToDashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	h.respondState(w, st, nil)
}

// RenewWeek assembles a fresh package for the existing profile.
func (h *Handler) RenewWeek(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.RenewWeek(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	slog.Info("Week renewed", "user_id", userID, "package_id", st.Package.ID)
	h.respondState(w, st, nil)
}

// Rediscover discards the profile and package and reopens the chat.
func (h *Handler) Rediscover(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	st, d, err := h.svc.Rediscover(r.Context(), userID, sessionID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	slog.Info("Rediscovery started", "user_id", userID, "session_id", sessionID)
	h.respondState(w, st, d.Transcript())
}

// GetExperience returns one experience from the catalog.
func (h *Handler) GetExperience(w http.ResponseWriter, r *http.Request) {
	exp, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, identity.UserIDFromContext(r.Context()))
		return
	}
	JSON(w, http.StatusOK, exp)
}

// SelectExperience opens the experience detail view.
func (h *Handler) SelectExperience(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.SelectExperience(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	h.respondState(w, st, nil)
}

// Upgrade moves the user to the premium tier.
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.Upgrade(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	h.respondState(w, st, nil)
}

// Logout clears both stored blobs and rotates the device id.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.Logout(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	if _, err := identity.Rotate(w, h.opts.IsDevelopment); err != nil {
		slog.Warn("Failed to rotate device id", "user_id", userID, "error", err)
	}
	slog.Info("User logged out", "user_id", userID)
	h.respondState(w, st, nil)
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled":     h.opts.AIEnabled,
		"model":          h.opts.Model,
		"package_size":   h.opts.PackageSize,
		"min_messages":   h.opts.MinMessages,
		"session_header": identity.SessionHeaderName,
	})
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"api": "ok", "database": "ok"}
	status := map[string]interface{}{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if h.health != nil {
		if err := h.health.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			checks["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		}
	}

	JSON(w, statusCode, status)
}
