package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tailorblend/consultant-api/internal/domain"
)

// handleMultiAgentStream runs the formulation pipeline and streams each
// agent's progress steps as SSE frames, terminated by [DONE]. Pipeline
// failures arrive as an error step inside the stream, never as a failed
// HTTP response, because the headers are already committed.
func (h *Handler) handleMultiAgentStream(w http.ResponseWriter, r *http.Request) {
	var req domain.MultiAgentBlendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	if req.HealthGoals == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "health_goals is required")
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "streaming_error", err.Error())
		return
	}

	stop := stream.StartKeepalive(r.Context(), h.keepalive)
	defer stop()

	blends := h.blendService()
	if blends == nil {
		stream.Data(domain.AgentStep{
			AgentName: "Multi-Agent System",
			StepType:  "error",
			Content:   "The formulation engine is still warming up. Please try again in a moment.",
		})
		stream.Done()
		return
	}

	h.logger.Info("multi-agent formulation started",
		slog.String("session_id", req.SessionID))

	err = blends.CreateBlend(r.Context(), req, func(step domain.AgentStep) error {
		return stream.Data(step)
	})
	if err != nil {
		h.logger.Error("multi-agent stream aborted",
			slog.String("session_id", req.SessionID),
			slog.Any("error", err))
	}

	stream.Done()
}
