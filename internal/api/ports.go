package api

import (
	"context"

	"github.com/tailorblend/consultant-api/internal/consultant"
	"github.com/tailorblend/consultant-api/internal/domain"
)

// ChatService runs consultation turns.
type ChatService interface {
	Stream(ctx context.Context, req domain.ChatRequest, emit func(token string) error) (*consultant.TurnResult, error)
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// BlendService runs the multi-agent formulation pipeline.
type BlendService interface {
	CreateBlend(ctx context.Context, req domain.MultiAgentBlendRequest, emit func(step domain.AgentStep) error) error
}

// SessionResetter clears per-session state on session reset.
type SessionResetter interface {
	Reset(sessionID string)
}
