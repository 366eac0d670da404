package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tailorblend/consultant-api/internal/storage"
	"github.com/tailorblend/consultant-api/internal/storage/memory"
)

func seedTranscript(t *testing.T, store storage.TranscriptStore, sessionID string, contents ...string) {
	t.Helper()
	for i, content := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		err := store.AppendMessage(context.Background(), &storage.StoredMessage{
			ID:        sessionID + "-" + role,
			SessionID: sessionID,
			Role:      role,
			Content:   content,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSessionTranscript(t *testing.T) {
	store := memory.New()
	seedTranscript(t, store, "sess-1", "I need help sleeping", "Let's look at magnesium.")

	f := newFixture(t, &stubChat{}, WithTranscriptStore(store))

	rec := f.do(t, http.MethodGet, "/api/session/sess-1/transcript", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var transcript storage.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &transcript); err != nil {
		t.Fatal(err)
	}
	if transcript.SessionID != "sess-1" {
		t.Errorf("unexpected session %q", transcript.SessionID)
	}
	if len(transcript.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(transcript.Messages))
	}
	if transcript.Messages[1].Role != "assistant" {
		t.Errorf("unexpected message order: %+v", transcript.Messages)
	}
}

func TestSessionTranscriptNotFound(t *testing.T) {
	f := newFixture(t, &stubChat{}, WithTranscriptStore(memory.New()))

	rec := f.do(t, http.MethodGet, "/api/session/sess-missing/transcript", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTranscriptEndpointsWithoutStore(t *testing.T) {
	f := newFixture(t, &stubChat{})

	for _, path := range []string{"/api/session/sess-1/transcript", "/api/transcripts"} {
		rec := f.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s returned %d without a store", path, rec.Code)
		}
	}
}

func TestListTranscripts(t *testing.T) {
	store := memory.New()
	seedTranscript(t, store, "sess-1", "hello")
	seedTranscript(t, store, "sess-2", "hi there")

	f := newFixture(t, &stubChat{}, WithTranscriptStore(store))

	rec := f.do(t, http.MethodGet, "/api/transcripts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Transcripts []storage.Transcript `json:"transcripts"`
		Count       int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 || len(body.Transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %+v", body)
	}

	rec = f.do(t, http.MethodGet, "/api/transcripts?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 {
		t.Fatalf("expected limit to cap the listing, got %+v", body)
	}
}
