// Package api registers the consultant HTTP endpoints: chat (streaming and
// blocking), the multi-agent formulation stream, session stats and reset, the
// instructions editor, and the trace viewer.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tailorblend/consultant-api/internal/instructions"
	"github.com/tailorblend/consultant-api/internal/server"
	"github.com/tailorblend/consultant-api/internal/session"
	"github.com/tailorblend/consultant-api/internal/storage"
	"github.com/tailorblend/consultant-api/internal/trace"
)

const (
	serviceName    = "tailorblend-ai-consultant-api"
	serviceVersion = "1.0.0"

	// keepaliveInterval is how often SSE comments are sent on idle streams
	// so proxies do not close the connection.
	keepaliveInterval = 15 * time.Second
)

// Handler carries the wired services behind the HTTP endpoints.
type Handler struct {
	chat         ChatService
	instructions *instructions.Store
	sessions     *session.Tracker
	traces       *trace.Store
	hub          *trace.Hub
	transcripts  storage.TranscriptStore
	resetters    []SessionResetter
	logger       *slog.Logger
	keepalive    time.Duration

	// The formulation orchestrator is built during warm-up, after the
	// server is already accepting requests.
	mu     sync.RWMutex
	blends BlendService

	ready atomic.Bool
}

// Option configures the handler.
type Option func(*Handler)

// WithBlendService sets the multi-agent formulation service.
func WithBlendService(b BlendService) Option {
	return func(h *Handler) {
		h.blends = b
	}
}

// WithTranscriptStore enables the transcript retrieval endpoints. Without it
// they answer 404.
func WithTranscriptStore(store storage.TranscriptStore) Option {
	return func(h *Handler) {
		h.transcripts = store
	}
}

// WithSessionResetter adds a component whose per-session state is cleared on
// session reset.
func WithSessionResetter(r SessionResetter) Option {
	return func(h *Handler) {
		h.resetters = append(h.resetters, r)
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithKeepaliveInterval overrides the SSE keepalive interval.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(h *Handler) {
		h.keepalive = d
	}
}

// NewHandler wires the endpoint handler.
func NewHandler(
	chat ChatService,
	instr *instructions.Store,
	sessions *session.Tracker,
	traces *trace.Store,
	hub *trace.Hub,
	opts ...Option,
) *Handler {
	h := &Handler{
		chat:         chat,
		instructions: instr,
		sessions:     sessions,
		traces:       traces,
		hub:          hub,
		logger:       slog.Default(),
		keepalive:    keepaliveInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetReady marks warm-up as finished; the readiness probe starts returning
// 200 from this point on.
func (h *Handler) SetReady() {
	h.ready.Store(true)
}

// SetBlendService installs the formulation service once warm-up has built it.
func (h *Handler) SetBlendService(b BlendService) {
	h.mu.Lock()
	h.blends = b
	h.mu.Unlock()
}

func (h *Handler) blendService() BlendService {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.blends
}

// Register mounts all routes on the router. The SSE endpoints are registered
// without a timeout because they stay open until the client disconnects.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Get("/ping", h.handlePing)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/ready", h.handleReady)

		r.Group(func(r chi.Router) {
			r.Use(server.TimeoutMiddleware(30 * time.Second))
			r.Get("/session/stats", h.handleSessionStats)
			r.Post("/session/reset", h.handleSessionReset)
			r.Get("/session/{session_id}/traces", h.handleSessionTraces)
			r.Get("/session/{session_id}/transcript", h.handleSessionTranscript)
			r.Get("/transcripts", h.handleListTranscripts)
			r.Get("/instructions", h.handleGetInstructions)
			r.Post("/instructions", h.handleUpdateInstructions)
			r.Post("/instructions/reset", h.handleResetInstructions)
		})

		r.Group(func(r chi.Router) {
			r.Use(server.TimeoutMiddleware(2 * time.Minute))
			r.Post("/chat", h.handleChat)
		})

		r.Get("/chat/stream", h.handleChatStreamGet)
		r.Post("/chat/stream", h.handleChatStreamPost)
		r.Post("/multi-agent/stream", h.handleMultiAgentStream)
		r.Get("/session/{session_id}/traces/stream", h.handleTraceStream)
	})
}

// handleHealth is the liveness probe. It must answer 200 immediately after
// start, before warm-up completes, so the platform does not kill the process.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"pong": "ok"})
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"service": "TailorBlend AI Consultant API",
		"status":  "running",
		"version": serviceVersion,
	})
}

// handleReady is the readiness probe. Unlike the liveness probe it reports
// 503 until warm-up has finished.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":  false,
			"status": "warming up",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"ready":   true,
		"status":  "ready for requests",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("writing response failed", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}
