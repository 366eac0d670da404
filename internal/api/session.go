package api

import (
	"fmt"
	"log/slog"
	"net/http"
)

// handleSessionStats reports accumulated usage and cost for a session.
// Unknown sessions return zeroed stats, not 404, so the frontend can poll
// before the first turn.
func (h *Handler) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	h.writeJSON(w, http.StatusOK, h.sessions.Stats(sessionID))
}

// handleSessionReset clears a session's conversation state, trace history,
// and any registered per-session stores. The session_id arrives as form data.
func (h *Handler) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid form body: "+err.Error())
		return
	}
	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	h.sessions.Reset(sessionID)
	h.traces.ClearSession(sessionID)
	for _, resetter := range h.resetters {
		resetter.Reset(sessionID)
	}

	h.logger.Info("session reset", slog.String("session_id", sessionID))

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Session %s reset successfully", sessionID),
	})
}
