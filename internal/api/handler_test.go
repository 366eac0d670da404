package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tailorblend/consultant-api/internal/consultant"
	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/instructions"
	"github.com/tailorblend/consultant-api/internal/session"
	"github.com/tailorblend/consultant-api/internal/tokens"
	"github.com/tailorblend/consultant-api/internal/trace"
)

var testInstructions = strings.Join([]string{
	"You are the TailorBlend AI consultant.",
	"",
	"## 1. CORE IDENTITY",
	strings.Repeat("Identity guidance. ", 20),
	"## 2. CONVERSATION STYLE",
	strings.Repeat("Conversation guidance. ", 20),
	"## 3. VALUE PROPOSITION",
	strings.Repeat("Value guidance. ", 20),
	"## 4. WORKFLOW",
	strings.Repeat("Workflow guidance. ", 20),
	"## 5. TECHNICAL RULES",
	strings.Repeat("Technical guidance. ", 20),
}, "\n")

type stubChat struct {
	tokens []string
	resp   *domain.ChatResponse
	err    error
}

func (s *stubChat) Stream(ctx context.Context, req domain.ChatRequest, emit func(string) error) (*consultant.TurnResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	var text strings.Builder
	for _, tok := range s.tokens {
		text.WriteString(tok)
		if err := emit(tok); err != nil {
			return nil, err
		}
	}
	return &consultant.TurnResult{Text: text.String(), Model: req.Model}, nil
}

func (s *stubChat) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return s.resp, s.err
}

type stubBlender struct {
	steps []domain.AgentStep
	err   error
}

func (s *stubBlender) CreateBlend(ctx context.Context, req domain.MultiAgentBlendRequest, emit func(domain.AgentStep) error) error {
	for _, step := range s.steps {
		if err := emit(step); err != nil {
			return err
		}
	}
	return s.err
}

type fixture struct {
	handler *Handler
	router  *chi.Mux
	store   *trace.Store
	hub     *trace.Hub
	tracker *session.Tracker
}

func newFixture(t *testing.T, chat ChatService, opts ...Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	consumer := filepath.Join(dir, "instructions.txt")
	practitioner := filepath.Join(dir, "practitioner-instructions.txt")
	if err := os.WriteFile(consumer, []byte(testInstructions), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(practitioner, []byte(testInstructions), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := trace.NewStore()
	hub := trace.NewHub(logger)
	tracker := session.NewTracker(tokens.NewPricer(17.50))

	h := NewHandler(
		chat,
		instructions.NewStore(consumer, practitioner),
		tracker,
		store,
		hub,
		append([]Option{WithLogger(logger)}, opts...)...,
	)

	r := chi.NewRouter()
	h.Register(r)

	return &fixture{handler: h, router: r, store: store, hub: hub, tracker: tracker}
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil && method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// sseDataFrames extracts the payload of every data frame in an SSE body.
func sseDataFrames(body string) []string {
	var frames []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	return frames
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, &stubChat{})

	for _, path := range []string{"/health", "/api/health", "/ping", "/"} {
		rec := f.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rec.Code)
		}
	}
}

func TestReadinessProbe(t *testing.T) {
	f := newFixture(t, &stubChat{})

	rec := f.do(t, http.MethodGet, "/api/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before warm-up, got %d", rec.Code)
	}

	f.handler.SetReady()
	rec = f.do(t, http.MethodGet, "/api/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after warm-up, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["ready"] != true {
		t.Errorf("unexpected readiness body %v", body)
	}
}

func TestChatStreamPost(t *testing.T) {
	f := newFixture(t, &stubChat{tokens: []string{"Hello", " there"}})

	body := `{"message": "Hi", "session_id": "sess-1"}`
	rec := f.do(t, http.MethodPost, "/api/chat/stream", strings.NewReader(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Error("proxy buffering not disabled")
	}

	frames := sseDataFrames(rec.Body.String())
	want := []string{`"Hello"`, `" there"`, "[DONE]"}
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), frames)
	}
	for i, frame := range want {
		if frames[i] != frame {
			t.Errorf("frame %d = %q, want %q", i, frames[i], frame)
		}
	}
}

func TestChatStreamGet(t *testing.T) {
	f := newFixture(t, &stubChat{tokens: []string{"token"}})

	q := url.Values{"message": {"Hi"}, "session_id": {"sess-1"}}
	rec := f.do(t, http.MethodGet, "/api/chat/stream?"+q.Encode(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	frames := sseDataFrames(rec.Body.String())
	if len(frames) != 2 || frames[1] != "[DONE]" {
		t.Errorf("unexpected frames %v", frames)
	}
}

func TestChatStreamValidation(t *testing.T) {
	f := newFixture(t, &stubChat{})

	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"session_id": "sess-1"}`},
		{"missing session", `{"message": "Hi"}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/chat/stream", strings.NewReader(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestChatStreamErrorStaysSanitized(t *testing.T) {
	f := newFixture(t, &stubChat{err: errors.New("upstream exploded: api key sk-secret")})

	body := `{"message": "Hi", "session_id": "sess-1"}`
	rec := f.do(t, http.MethodPost, "/api/chat/stream", strings.NewReader(body))

	out := rec.Body.String()
	if strings.Contains(out, "sk-secret") {
		t.Error("upstream error leaked into the stream")
	}

	frames := sseDataFrames(out)
	if len(frames) != 2 {
		t.Fatalf("expected error frame plus terminator, got %v", frames)
	}
	var msg string
	if err := json.Unmarshal([]byte(frames[0]), &msg); err != nil {
		t.Fatal(err)
	}
	if msg != streamErrorMessage {
		t.Errorf("unexpected error message %q", msg)
	}
	if frames[1] != "[DONE]" {
		t.Error("terminator missing after error")
	}
}

func TestChatPost(t *testing.T) {
	f := newFixture(t, &stubChat{resp: &domain.ChatResponse{
		Response:     "Full reply",
		SessionID:    "sess-1",
		Tokens:       domain.TokenInfo{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		CostZAR:      0.12,
		Model:        domain.DefaultModel,
		MessageCount: 1,
	}})

	body := `{"message": "Hi", "session_id": "sess-1"}`
	rec := f.do(t, http.MethodPost, "/api/chat", strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp domain.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Full reply" || resp.Tokens.TotalTokens != 15 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestChatPostUpstreamFailure(t *testing.T) {
	f := newFixture(t, &stubChat{err: errors.New("boom")})

	body := `{"message": "Hi", "session_id": "sess-1"}`
	rec := f.do(t, http.MethodPost, "/api/chat", strings.NewReader(body))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("internal error leaked to client")
	}
}

func TestSessionStatsUnknownSession(t *testing.T) {
	f := newFixture(t, &stubChat{})

	rec := f.do(t, http.MethodGet, "/api/session/stats?session_id=ghost", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var stats domain.SessionStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.MessageCount != 0 || stats.TotalTokens != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
	if stats.CostFormatted != "R0.00" {
		t.Errorf("unexpected cost format %q", stats.CostFormatted)
	}
}

func TestSessionStatsRequiresSessionID(t *testing.T) {
	f := newFixture(t, &stubChat{})
	rec := f.do(t, http.MethodGet, "/api/session/stats", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSessionReset(t *testing.T) {
	f := newFixture(t, &stubChat{})

	f.tracker.RecordTurn("sess-1", domain.DefaultModel, "resp_1",
		domain.TokenInfo{InputTokens: 100, OutputTokens: 50, TotalTokens: 150})
	f.store.Associate("trace_1", "sess-1")
	f.store.BeginTrace("trace_1", "Consultation", nil)
	f.store.EndTrace("trace_1")

	form := url.Values{"session_id": {"sess-1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/session/reset", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true {
		t.Errorf("expected success, got %v", body)
	}
	if body["message"] != "Session sess-1 reset successfully" {
		t.Errorf("unexpected message %v", body["message"])
	}

	if f.tracker.MessageCount("sess-1") != 0 {
		t.Error("session stats not reset")
	}
	if len(f.store.Traces("sess-1")) != 0 {
		t.Error("traces not cleared")
	}
}

func TestGetInstructions(t *testing.T) {
	f := newFixture(t, &stubChat{})

	rec := f.do(t, http.MethodGet, "/api/instructions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var body struct {
		Success  bool              `json:"success"`
		Sections map[string]string `json:"sections"`
		FullText string            `json:"full_text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success {
		t.Fatal("expected success")
	}
	if body.FullText != testInstructions {
		t.Error("full_text does not match the instructions file")
	}
	if _, ok := body.Sections["1. CORE IDENTITY"]; !ok {
		t.Errorf("sections missing core identity: %v", body.Sections)
	}
	if _, ok := body.Sections[instructions.PreambleKey]; !ok {
		t.Error("preamble section missing")
	}
}

func TestUpdateInstructionsRawText(t *testing.T) {
	f := newFixture(t, &stubChat{})

	edited := strings.Replace(testInstructions, "Identity guidance.", "Edited guidance.", 1)
	payload, _ := json.Marshal(map[string]string{"raw_text": edited})

	rec := f.do(t, http.MethodPost, "/api/instructions", strings.NewReader(string(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/instructions", nil)
	if !strings.Contains(rec.Body.String(), "Edited guidance.") {
		t.Error("override not visible on subsequent read")
	}
}

func TestUpdateInstructionsSections(t *testing.T) {
	f := newFixture(t, &stubChat{})

	payload, _ := json.Marshal(map[string]any{
		"sections": map[string]string{
			"4. WORKFLOW": "Updated workflow content that replaces the original section.",
		},
	})
	rec := f.do(t, http.MethodPost, "/api/instructions", strings.NewReader(string(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/instructions", nil)
	body := rec.Body.String()
	if !strings.Contains(body, "Updated workflow content") {
		t.Error("section edit not applied")
	}
	if !strings.Contains(body, "Identity guidance.") {
		t.Error("untouched sections were lost")
	}
}

func TestUpdateInstructionsRejectsInvalid(t *testing.T) {
	f := newFixture(t, &stubChat{})

	payload, _ := json.Marshal(map[string]string{"raw_text": "too short"})
	rec := f.do(t, http.MethodPost, "/api/instructions", strings.NewReader(string(payload)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid instructions, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body)
	}
}

func TestResetInstructions(t *testing.T) {
	f := newFixture(t, &stubChat{})

	edited := strings.Replace(testInstructions, "Identity guidance.", "Edited guidance.", 1)
	payload, _ := json.Marshal(map[string]string{"raw_text": edited})
	f.do(t, http.MethodPost, "/api/instructions", strings.NewReader(string(payload)))

	rec := f.do(t, http.MethodPost, "/api/instructions/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/instructions", nil)
	if strings.Contains(rec.Body.String(), "Edited guidance.") {
		t.Error("override survived reset")
	}
}

func TestSessionTraces(t *testing.T) {
	f := newFixture(t, &stubChat{})

	t.Run("empty session", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/session/ghost/traces", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
		var body struct {
			SessionID string           `json:"session_id"`
			Traces    []map[string]any `json:"traces"`
			Count     int              `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Count != 0 || body.Traces == nil {
			t.Errorf("expected empty trace list, got %+v", body)
		}
	})

	t.Run("with history", func(t *testing.T) {
		f.store.Associate("trace_1", "sess-1")
		f.store.BeginTrace("trace_1", "Consultation", map[string]any{"session_id": "sess-1"})
		f.store.EndTrace("trace_1")

		rec := f.do(t, http.MethodGet, "/api/session/sess-1/traces", nil)
		var body struct {
			Count  int              `json:"count"`
			Traces []map[string]any `json:"traces"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Count != 1 {
			t.Fatalf("expected one trace, got %d", body.Count)
		}
		if body.Traces[0]["trace_id"] != "trace_1" {
			t.Errorf("unexpected trace %v", body.Traces[0])
		}
	})
}

func TestTraceStream(t *testing.T) {
	f := newFixture(t, &stubChat{})

	f.store.Associate("trace_live", "sess-live")
	f.store.BeginTrace("trace_live", "Consultation", nil)
	record, _ := f.store.EndTrace("trace_live")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/session/sess-live/traces/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.router.ServeHTTP(rec, req)
	}()

	waitFor(t, func() bool { return f.hub.SubscriberCount("sess-live") == 1 })
	f.hub.Publish("sess-live", record)

	// Give the handler a moment to drain the delivery before closing.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	frames := sseDataFrames(rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("expected one trace frame, got %v", frames)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(frames[0]), &got); err != nil {
		t.Fatal(err)
	}
	if got["trace_id"] != "trace_live" {
		t.Errorf("unexpected trace frame %v", got)
	}

	if f.hub.SubscriberCount("sess-live") != 0 {
		t.Error("subscription not released on disconnect")
	}
}

func TestMultiAgentStream(t *testing.T) {
	blender := &stubBlender{steps: []domain.AgentStep{
		{AgentName: "Supplement Specialist", StepType: "thinking", Content: "Analyzing your health profile..."},
		{AgentName: "Supplement Specialist", StepType: "result", Content: "Selected 4 ingredients"},
		{AgentName: "Multi-Agent System", StepType: "result", Content: "Formulation complete!"},
	}}
	f := newFixture(t, &stubChat{}, WithBlendService(blender))

	body := `{"session_id": "sess-1", "health_goals": "energy and focus"}`
	rec := f.do(t, http.MethodPost, "/api/multi-agent/stream", strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	frames := sseDataFrames(rec.Body.String())
	if len(frames) != 4 {
		t.Fatalf("expected three steps plus terminator, got %v", frames)
	}
	if frames[3] != "[DONE]" {
		t.Error("terminator missing")
	}

	var first domain.AgentStep
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.StepType != "thinking" || first.AgentName != "Supplement Specialist" {
		t.Errorf("unexpected first step %+v", first)
	}
}

func TestMultiAgentStreamWhileWarmingUp(t *testing.T) {
	f := newFixture(t, &stubChat{})

	body := `{"session_id": "sess-1", "health_goals": "energy"}`
	rec := f.do(t, http.MethodPost, "/api/multi-agent/stream", strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	frames := sseDataFrames(rec.Body.String())
	if len(frames) != 2 || frames[1] != "[DONE]" {
		t.Fatalf("unexpected frames %v", frames)
	}
	var step domain.AgentStep
	if err := json.Unmarshal([]byte(frames[0]), &step); err != nil {
		t.Fatal(err)
	}
	if step.StepType != "error" {
		t.Errorf("expected warming-up error step, got %+v", step)
	}
}

func TestMultiAgentStreamValidation(t *testing.T) {
	f := newFixture(t, &stubChat{}, WithBlendService(&stubBlender{}))

	tests := []struct {
		name string
		body string
	}{
		{"missing session", `{"health_goals": "energy"}`},
		{"missing goals", `{"session_id": "sess-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/multi-agent/stream", strings.NewReader(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
