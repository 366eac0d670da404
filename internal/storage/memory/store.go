// Package memory is an in-memory TranscriptStore for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tailorblend/consultant-api/internal/storage"
)

// Store is an in-memory implementation of TranscriptStore.
type Store struct {
	mu          sync.RWMutex
	transcripts map[string]*storage.Transcript
	now         func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		transcripts: make(map[string]*storage.Transcript),
		now:         time.Now,
	}
}

func (s *Store) AppendMessage(ctx context.Context, msg *storage.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t, ok := s.transcripts[msg.SessionID]
	if !ok {
		t = &storage.Transcript{
			SessionID: msg.SessionID,
			CreatedAt: now,
		}
		s.transcripts[msg.SessionID] = t
	}

	stored := *msg
	stored.CreatedAt = now
	t.Messages = append(t.Messages, stored)
	t.UpdatedAt = now
	if msg.Model != "" {
		t.Model = msg.Model
	}
	t.TotalInputTokens += msg.InputTokens
	t.TotalOutputTokens += msg.OutputTokens

	return nil
}

func (s *Store) GetTranscript(ctx context.Context, sessionID string) (*storage.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[sessionID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	c := *t
	c.Messages = make([]storage.StoredMessage, len(t.Messages))
	copy(c.Messages, t.Messages)
	return &c, nil
}

func (s *Store) ListTranscripts(ctx context.Context, opts storage.ListOptions) ([]*storage.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Transcript, 0, len(s.transcripts))
	for _, t := range s.transcripts {
		c := *t
		c.Messages = nil
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	start := opts.Offset
	if start >= len(result) {
		return []*storage.Transcript{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) DeleteTranscript(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, sessionID)
	return nil
}

func (s *Store) Close() error {
	return nil
}
