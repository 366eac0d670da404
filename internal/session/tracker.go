// Package session keeps in-memory per-session conversation state: message
// counts, accumulated token usage, and the previous response ID used for
// conversation chaining. State is intentionally not persisted; a restart
// starts every session fresh.
package session

import (
	"sync"

	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/tokens"
)

// State is the accumulated usage for one session.
type State struct {
	Model              string
	MessageCount       int
	TotalInputTokens   int
	TotalOutputTokens  int
	PreviousResponseID string
	LastInputTokens    int
	LastOutputTokens   int
}

// Tracker records usage per session and produces session stats.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*State
	pricer   *tokens.Pricer
}

// NewTracker creates an empty tracker priced with the given pricer.
func NewTracker(pricer *tokens.Pricer) *Tracker {
	return &Tracker{
		sessions: make(map[string]*State),
		pricer:   pricer,
	}
}

// RecordTurn accumulates one completed chat turn into the session. The
// response ID chains the next turn's context upstream.
func (t *Tracker) RecordTurn(sessionID, model, responseID string, usage domain.TokenInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[sessionID]
	if !ok {
		st = &State{}
		t.sessions[sessionID] = st
	}

	st.Model = model
	st.MessageCount++
	st.PreviousResponseID = responseID
	st.TotalInputTokens += usage.InputTokens
	st.TotalOutputTokens += usage.OutputTokens
	st.LastInputTokens = usage.InputTokens
	st.LastOutputTokens = usage.OutputTokens
}

// PreviousResponseID returns the last response ID recorded for the session,
// or "" when the session is new.
func (t *Tracker) PreviousResponseID(sessionID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.sessions[sessionID]; ok {
		return st.PreviousResponseID
	}
	return ""
}

// MessageCount returns the number of turns recorded for the session.
func (t *Tracker) MessageCount(sessionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.sessions[sessionID]; ok {
		return st.MessageCount
	}
	return 0
}

// Stats summarizes the session's usage and cost. Unknown sessions report
// zeros rather than an error so the endpoint can answer polls for sessions
// that have not spoken yet.
func (t *Tracker) Stats(sessionID string) domain.SessionStats {
	t.mu.Lock()
	st, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return domain.SessionStats{
			SessionID:     sessionID,
			CostFormatted: "R0.00",
		}
	}
	model := st.Model
	in := st.TotalInputTokens
	out := st.TotalOutputTokens
	count := st.MessageCount
	t.mu.Unlock()

	if model == "" {
		model = domain.DefaultModel
	}
	cost := t.pricer.CostZAR(model, in, out)

	return domain.SessionStats{
		SessionID:         sessionID,
		Model:             model,
		MessageCount:      count,
		TotalInputTokens:  in,
		TotalOutputTokens: out,
		TotalTokens:       in + out,
		CostZAR:           cost.TotalZAR,
		CostFormatted:     tokens.FormatZAR(cost.TotalZAR),
	}
}

// Reset drops all state for the session. Resetting an unknown session is a
// no-op.
func (t *Tracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}
