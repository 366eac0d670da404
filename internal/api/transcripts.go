package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tailorblend/consultant-api/internal/storage"
)

// handleSessionTranscript returns the recorded conversation for one session.
func (h *Handler) handleSessionTranscript(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "transcript storage is disabled")
		return
	}
	sessionID := chi.URLParam(r, "session_id")

	transcript, err := h.transcripts.GetTranscript(r.Context(), sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "No transcript for session "+sessionID)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, transcript)
}

// handleListTranscripts lists recorded conversations, most recently updated
// first. Messages are omitted; fetch a session's transcript for the full
// history.
func (h *Handler) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "transcript storage is disabled")
		return
	}

	opts := storage.ListOptions{}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}

	transcripts, err := h.transcripts.ListTranscripts(r.Context(), opts)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transcripts": transcripts,
		"count":       len(transcripts),
	})
}
