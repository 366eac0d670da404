// Package conversation records completed chat turns into the transcript
// store. Recording is best-effort: persistence failures are logged and never
// surface to the request path.
package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/storage"
)

// persistTimeout bounds each write so a stuck store cannot pile up
// goroutines forever.
const persistTimeout = 5 * time.Second

// Recorder persists chat turns to a TranscriptStore.
type Recorder struct {
	store  storage.TranscriptStore
	logger *slog.Logger
}

// NewRecorder creates a recorder. A nil store produces a recorder whose
// RecordTurn is a no-op.
func NewRecorder(store storage.TranscriptStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RecordTurn writes the user and assistant messages of one completed turn.
// It uses a fresh context so a client disconnect after the turn completes
// does not drop the transcript.
func (r *Recorder) RecordTurn(sessionID, model, userMessage, assistantMessage string, usage domain.TokenInfo) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	r.append(ctx, &storage.StoredMessage{
		ID:        "msg_" + uuid.New().String(),
		SessionID: sessionID,
		Role:      "user",
		Content:   userMessage,
	})
	r.append(ctx, &storage.StoredMessage{
		ID:           "msg_" + uuid.New().String(),
		SessionID:    sessionID,
		Role:         "assistant",
		Content:      assistantMessage,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	})
}

func (r *Recorder) append(ctx context.Context, msg *storage.StoredMessage) {
	if msg.Content == "" {
		return
	}
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		r.logger.Error("failed to record message",
			slog.String("session_id", msg.SessionID),
			slog.String("role", msg.Role),
			slog.String("error", err.Error()))
	}
}

// Reset removes a session's transcript, best-effort.
func (r *Recorder) Reset(sessionID string) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.store.DeleteTranscript(ctx, sessionID); err != nil {
		r.logger.Error("failed to reset transcript",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}
