package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tailorblend/consultant-api/internal/trace"
)

// handleSessionTraces returns a session's completed trace history. A session
// with no traces yet returns an empty list, not 404.
func (h *Handler) handleSessionTraces(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	records := h.traces.Traces(sessionID)
	if records == nil {
		records = []*trace.Record{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"traces":     records,
		"count":      len(records),
	})
}

// handleTraceStream pushes traces to the client as consultations complete.
// The stream stays open until the client disconnects; there is no terminator
// frame.
func (h *Handler) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	stream, err := newSSEStream(w)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "streaming_error", err.Error())
		return
	}

	sub := h.hub.Subscribe(r.Context(), sessionID)
	defer h.hub.Unsubscribe(sub)

	stop := stream.StartKeepalive(r.Context(), h.keepalive)
	defer stop()

	h.logger.Info("trace stream opened", slog.String("session_id", sessionID))
	defer h.logger.Info("trace stream closed", slog.String("session_id", sessionID))

	for {
		select {
		case <-r.Context().Done():
			return
		case rec := <-sub.Records():
			if err := stream.Data(rec); err != nil {
				return
			}
		}
	}
}
