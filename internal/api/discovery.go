package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/identity"
)

// ChatRequest is the body of a discovery chat message.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply and the updated transcript.
type ChatResponse struct {
	Reply      domain.Message   `json:"reply"`
	Transcript []domain.Message `json:"transcript"`
	Typing     bool             `json:"typing"`
}

// GetDiscovery returns the tab's discovery transcript.
func (h *Handler) GetDiscovery(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	d, err := h.svc.Discovery(userID, identity.SessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"transcript": d.Transcript(),
		"typing":     d.Typing(),
	})
}

// SendMessage handles POST /api/discovery/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	var req ChatRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	slog.Info("Discovery message",
		"user_id", userID,
		"session_id", sessionID,
		"message_length", len(req.Message),
	)

	reply, err := h.svc.SendMessage(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}

	resp := ChatResponse{Reply: reply}
	if d, err := h.svc.Discovery(userID, sessionID); err == nil {
		resp.Transcript = d.Transcript()
		resp.Typing = d.Typing()
	}
	JSON(w, http.StatusOK, resp)
}

// SkipDiscovery installs the canned profile and shows the dashboard.
func (h *Handler) SkipDiscovery(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	st, err := h.svc.SkipDiscovery(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	slog.Info("Discovery skipped", "user_id", userID)
	h.respondState(w, st, nil)
}

// Events streams discovery notifications over SSE: typing changes for the
// calling tab and profile_ready for any of the user's tabs.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	notifications, cancel := h.svc.Hub().Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeSSE(w, "connected", `{"status":"ok"}`); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.opts.KeepaliveInterval)
	defer keepalive.Stop()

	slog.Debug("SSE stream opened", "user_id", userID, "session_id", sessionID)
	defer slog.Debug("SSE stream closed", "user_id", userID, "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n.SessionID != "" && n.SessionID != sessionID {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				slog.Warn("Failed to marshal notification", "error", err)
				continue
			}
			if err := writeSSE(w, string(n.Type), string(data)); err != nil {
				slog.Debug("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
