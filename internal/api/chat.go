package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/server"
)

// streamErrorMessage is what clients see when a turn fails mid-stream.
// Upstream details stay in the logs.
const streamErrorMessage = "We're having trouble processing your request. Please try again in a moment."

// handleChatStreamGet streams a chat turn from query parameters. The GET
// variant exists for EventSource clients, which cannot send a body.
func (h *Handler) handleChatStreamGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.ChatRequest{
		Message:            q.Get("message"),
		SessionID:          q.Get("session_id"),
		CustomInstructions: q.Get("custom_instructions"),
		Model:              q.Get("model"),
	}
	h.streamChat(w, r, req)
}

// handleChatStreamPost streams a chat turn from a JSON body, which carries
// the fields the GET variant cannot: attachments, practitioner mode, and the
// reasoning parameters.
func (h *Handler) handleChatStreamPost(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}
	h.streamChat(w, r, req)
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, req domain.ChatRequest) {
	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "streaming_error", err.Error())
		return
	}

	stop := stream.StartKeepalive(r.Context(), h.keepalive)
	defer stop()

	server.AddLogField(r.Context(), "session_id", req.SessionID)
	h.logger.Info("chat stream started",
		slog.String("session_id", req.SessionID),
		slog.String("model", req.Model),
		slog.Int("attachments", len(req.Attachments)))

	_, err = h.chat.Stream(r.Context(), req, func(token string) error {
		return stream.Data(token)
	})
	if err != nil {
		server.AddError(r.Context(), err)
		h.logger.Error("chat stream failed",
			slog.String("session_id", req.SessionID),
			slog.Any("error", err))
		stream.Data(streamErrorMessage)
	}

	// The terminator goes out even after an error so the client knows the
	// stream ended rather than stalled.
	stream.Done()
}

// handleChat is the blocking variant: the full turn runs server-side and the
// assembled response comes back as one JSON document. Frontends that cannot
// hold an SSE connection open use this and simulate streaming locally.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	server.AddLogField(r.Context(), "session_id", req.SessionID)

	resp, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		server.AddError(r.Context(), err)
		h.logger.Error("chat turn failed",
			slog.String("session_id", req.SessionID),
			slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "chat_error", streamErrorMessage)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}
