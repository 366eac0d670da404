// Package storage defines the persistence interfaces for conversation
// transcripts. Session state itself is deliberately in-memory; transcripts
// are an audit record, not the source of truth for a running conversation.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested transcript does not exist.
var ErrNotFound = errors.New("not found")

// Transcript is the recorded history of one session.
type Transcript struct {
	SessionID         string          `json:"session_id"`
	Model             string          `json:"model"`
	Messages          []StoredMessage `json:"messages"`
	TotalInputTokens  int             `json:"total_input_tokens"`
	TotalOutputTokens int             `json:"total_output_tokens"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// StoredMessage is one recorded message of a transcript.
type StoredMessage struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Role         string    `json:"role"` // user, assistant
	Content      string    `json:"content"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListOptions paginates transcript listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// TranscriptStore persists conversation transcripts.
type TranscriptStore interface {
	// AppendMessage records a message, creating the transcript on first use.
	AppendMessage(ctx context.Context, msg *StoredMessage) error

	// GetTranscript returns a session's transcript with messages in
	// chronological order, or ErrNotFound.
	GetTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// ListTranscripts returns transcripts without messages, most recently
	// updated first.
	ListTranscripts(ctx context.Context, opts ListOptions) ([]*Transcript, error)

	// DeleteTranscript removes a session's transcript. Deleting an unknown
	// session is not an error.
	DeleteTranscript(ctx context.Context, sessionID string) error

	Close() error
}
