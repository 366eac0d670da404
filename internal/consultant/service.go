// Package consultant runs chat turns against the upstream model: it resolves
// the system prompt, chains conversation state, instruments each turn with
// traces, and accounts token usage per session.
package consultant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/instructions"
	"github.com/tailorblend/consultant-api/internal/openai"
	"github.com/tailorblend/consultant-api/internal/session"
	"github.com/tailorblend/consultant-api/internal/tokens"
	"github.com/tailorblend/consultant-api/internal/trace"
)

// workflowName labels consultation traces in the trace viewer.
const workflowName = "TailorBlend Consultation"

// markdownInstruction is prepended to the first message of a session so the
// model formats replies as markdown from the start without a permanent
// instructions change.
const markdownInstruction = "[SYSTEM INSTRUCTION: Always format your responses using markdown syntax " +
	"(use **bold** for important terms like supplement names, use bullet lists " +
	"for recommendations, use numbered lists for steps, use headers for sections). " +
	"Stay warm and conversational, but structure your responses with markdown. " +
	"This makes your responses clearer and more professional.]\n\n"

// maxToolRounds bounds how many consecutive tool-call rounds one turn may
// take before the turn is abandoned.
const maxToolRounds = 5

// Provider is the upstream model API surface the service depends on.
type Provider interface {
	CreateResponse(ctx context.Context, req *openai.ResponsesRequest) (*openai.ResponsesResponse, error)
	StreamResponse(ctx context.Context, req *openai.ResponsesRequest) (<-chan openai.StreamResult, error)
}

// Tool is a function the model may invoke mid-turn. Invoke returns the JSON
// output handed back to the model.
type Tool interface {
	Definition() openai.Tool
	Invoke(ctx context.Context, arguments json.RawMessage) (string, error)
}

// TurnRecorder persists completed turns. Recording is best-effort; failures
// never fail the turn.
type TurnRecorder interface {
	RecordTurn(sessionID, model, userMessage, assistantMessage string, usage domain.TokenInfo)
}

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Text       string
	ResponseID string
	Model      string
	Usage      domain.TokenInfo
}

// Service executes consultation turns.
type Service struct {
	provider     Provider
	instructions *instructions.Store
	sessions     *session.Tracker
	counter      *tokens.Counter
	pricer       *tokens.Pricer
	traces       *trace.Processor
	recorder     TurnRecorder
	tools        []Tool
	logger       *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithTurnRecorder attaches a conversation recorder.
func WithTurnRecorder(r TurnRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithTool registers a tool the model may call during a turn.
func WithTool(t Tool) Option {
	return func(s *Service) {
		s.tools = append(s.tools, t)
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService wires a consultation service.
func NewService(
	provider Provider,
	instr *instructions.Store,
	sessions *session.Tracker,
	counter *tokens.Counter,
	pricer *tokens.Pricer,
	traces *trace.Processor,
	opts ...Option,
) *Service {
	s := &Service{
		provider:     provider,
		instructions: instr,
		sessions:     sessions,
		counter:      counter,
		pricer:       pricer,
		traces:       traces,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream runs one turn, invoking emit for each output token as it arrives.
// GPT-5 models run non-streaming upstream and emit their full text once.
// The returned result carries the final text and usage either way.
func (s *Service) Stream(ctx context.Context, req domain.ChatRequest, emit func(token string) error) (*TurnResult, error) {
	apiReq, model, err := s.buildRequest(req)
	if err != nil {
		return nil, err
	}

	traceID := newTraceID()
	spanID := newSpanID()
	payload := map[string]any{
		"type":  "generation",
		"model": model,
		"input": req.Message,
	}

	s.traces.AssociateSession(traceID, req.SessionID)
	s.traces.OnTraceStart(traceID, workflowName, map[string]any{"session_id": req.SessionID})
	s.traces.OnSpanStart(spanID, traceID, "", payload)
	defer s.traces.OnTraceEnd(traceID)

	result, err := s.run(ctx, traceID, apiReq, model, emit)

	// Finalize the generation span with whatever the turn produced; the
	// trace records failed turns too.
	if result != nil {
		payload["output"] = result.Text
		payload["usage"] = map[string]any{
			"input_tokens":  result.Usage.InputTokens,
			"output_tokens": result.Usage.OutputTokens,
			"total_tokens":  result.Usage.TotalTokens,
		}
	} else if err != nil {
		payload["output"] = fmt.Sprintf("error: %v", err)
	}
	s.traces.OnSpanEnd(spanID)

	if err != nil {
		return nil, err
	}

	s.finishTurn(req, model, result)
	return result, nil
}

// Chat runs one blocking turn and returns the assembled response.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	result, err := s.Stream(ctx, req, func(string) error { return nil })
	if err != nil {
		return nil, err
	}

	cost := s.pricer.CostZAR(result.Model, result.Usage.InputTokens, result.Usage.OutputTokens)
	return &domain.ChatResponse{
		Response:     result.Text,
		SessionID:    req.SessionID,
		Tokens:       result.Usage,
		CostZAR:      cost.TotalZAR,
		Model:        result.Model,
		MessageCount: s.sessions.MessageCount(req.SessionID),
	}, nil
}

func (s *Service) buildRequest(req domain.ChatRequest) (*openai.ResponsesRequest, string, error) {
	instr, err := s.instructions.Resolve(req.CustomInstructions, req.PractitionerMode)
	if err != nil {
		return nil, "", fmt.Errorf("resolve instructions: %w", err)
	}

	model := req.Model
	if model == "" {
		model = domain.DefaultModel
	}

	message := req.Message
	if s.sessions.MessageCount(req.SessionID) == 0 {
		message = markdownInstruction + message
	}

	apiReq := &openai.ResponsesRequest{
		Model:              model,
		Input:              buildInput(message, req.Attachments),
		Instructions:       instr,
		PreviousResponseID: s.sessions.PreviousResponseID(req.SessionID),
		Tools:              s.toolDefinitions(),
	}

	if isGPT5(model) {
		effort := req.ReasoningEffort
		if effort == "" {
			effort = "minimal"
		}
		verbosity := req.Verbosity
		if verbosity == "" {
			verbosity = "medium"
		}
		apiReq.Reasoning = &openai.ReasoningParam{Effort: effort}
		apiReq.Text = &openai.TextParam{Verbosity: verbosity}
	}

	return apiReq, model, nil
}

// run executes the upstream call. GPT-5 streaming requires a verified org,
// so those models run blocking and the full text is emitted as one token.
func (s *Service) run(ctx context.Context, traceID string, apiReq *openai.ResponsesRequest, model string, emit func(string) error) (*TurnResult, error) {
	if isGPT5(model) {
		resp, err := s.provider.CreateResponse(ctx, apiReq)
		if err != nil {
			return nil, err
		}
		usage := usageFromResponse(resp.Usage)
		resp, err = s.resolveToolCalls(ctx, traceID, apiReq, resp, &usage)
		if err != nil {
			return nil, err
		}
		result := &TurnResult{
			Text:       resp.OutputText(),
			ResponseID: resp.ID,
			Model:      model,
			Usage:      usage,
		}
		s.fillEstimatedUsage(apiReq, result)
		if err := emit(result.Text); err != nil {
			return result, err
		}
		return result, nil
	}

	events, err := s.provider.StreamResponse(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{Model: model}
	var text strings.Builder
	var completed *openai.ResponsesResponse
	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		switch ev.Event.Type {
		case openai.EventOutputTextDelta:
			var delta openai.TextDeltaEvent
			if err := json.Unmarshal(ev.Event.Data, &delta); err != nil {
				continue
			}
			text.WriteString(delta.Delta)
			if err := emit(delta.Delta); err != nil {
				result.Text = text.String()
				return result, err
			}
		case openai.EventResponseCompleted:
			var done openai.CompletedEvent
			if err := json.Unmarshal(ev.Event.Data, &done); err != nil {
				continue
			}
			completed = &done.Response
			result.ResponseID = done.Response.ID
			result.Usage = usageFromResponse(done.Response.Usage)
		case openai.EventResponseFailed, openai.EventError:
			return nil, fmt.Errorf("upstream stream failed: %s", string(ev.Event.Data))
		}
	}

	// A stream that ends on tool calls continues with blocking follow-ups;
	// the resolved text is emitted as one token.
	if completed != nil && len(completed.FunctionCalls()) > 0 {
		final, err := s.resolveToolCalls(ctx, traceID, apiReq, completed, &result.Usage)
		if err != nil {
			return nil, err
		}
		result.ResponseID = final.ID
		if tail := final.OutputText(); tail != "" {
			text.WriteString(tail)
			if err := emit(tail); err != nil {
				result.Text = text.String()
				return result, err
			}
		}
	}

	result.Text = text.String()
	s.fillEstimatedUsage(apiReq, result)
	return result, nil
}

// resolveToolCalls runs tool rounds until the model produces a response with
// no outstanding function calls. Each follow-up chains off the previous
// response and accumulates its usage into usage.
func (s *Service) resolveToolCalls(ctx context.Context, traceID string, apiReq *openai.ResponsesRequest, resp *openai.ResponsesResponse, usage *domain.TokenInfo) (*openai.ResponsesResponse, error) {
	for round := 0; round < maxToolRounds; round++ {
		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return resp, nil
		}

		outputs := make([]any, 0, len(calls))
		for _, call := range calls {
			outputs = append(outputs, openai.FunctionCallOutput(call.CallID, s.invokeTool(ctx, traceID, call)))
		}

		next, err := s.provider.CreateResponse(ctx, &openai.ResponsesRequest{
			Model:              apiReq.Model,
			Input:              outputs,
			Instructions:       apiReq.Instructions,
			PreviousResponseID: resp.ID,
			Tools:              apiReq.Tools,
			Reasoning:          apiReq.Reasoning,
			Text:               apiReq.Text,
		})
		if err != nil {
			return nil, fmt.Errorf("tool follow-up: %w", err)
		}

		u := usageFromResponse(next.Usage)
		usage.InputTokens += u.InputTokens
		usage.OutputTokens += u.OutputTokens
		usage.TotalTokens += u.TotalTokens
		resp = next
	}
	return nil, fmt.Errorf("turn did not settle after %d tool rounds", maxToolRounds)
}

// invokeTool executes one tool call inside a function span. Tool failures
// become the call output so the model can relay them instead of the turn
// dying mid-conversation.
func (s *Service) invokeTool(ctx context.Context, traceID string, call openai.OutputItem) string {
	spanID := newSpanID()
	payload := map[string]any{
		"type":  "function",
		"name":  call.Name,
		"input": call.Arguments,
	}
	s.traces.OnSpanStart(spanID, traceID, "", payload)
	defer s.traces.OnSpanEnd(spanID)

	output, err := s.dispatchTool(ctx, call)
	if err != nil {
		s.logger.Error("tool call failed",
			slog.String("tool", call.Name),
			slog.Any("error", err))
		output = fmt.Sprintf(`{"success": false, "errors": [%q]}`, err.Error())
	}
	payload["output"] = output
	return output
}

func (s *Service) dispatchTool(ctx context.Context, call openai.OutputItem) (string, error) {
	for _, tool := range s.tools {
		if tool.Definition().Name == call.Name {
			return tool.Invoke(ctx, json.RawMessage(call.Arguments))
		}
	}
	return "", fmt.Errorf("unknown tool %q", call.Name)
}

func (s *Service) toolDefinitions() []openai.Tool {
	if len(s.tools) == 0 {
		return nil
	}
	defs := make([]openai.Tool, 0, len(s.tools))
	for _, tool := range s.tools {
		defs = append(defs, tool.Definition())
	}
	return defs
}

// fillEstimatedUsage approximates token usage when the upstream did not
// report any, so session cost tracking keeps working.
func (s *Service) fillEstimatedUsage(apiReq *openai.ResponsesRequest, result *TurnResult) {
	if result.Usage.TotalTokens != 0 {
		return
	}

	input := s.counter.Count(result.Model, apiReq.Instructions)
	if msg, ok := apiReq.Input.(string); ok {
		input += s.counter.Count(result.Model, msg)
	}
	output := s.counter.Count(result.Model, result.Text)

	result.Usage = domain.TokenInfo{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	}
}

func (s *Service) finishTurn(req domain.ChatRequest, model string, result *TurnResult) {
	s.sessions.RecordTurn(req.SessionID, model, result.ResponseID, result.Usage)

	if s.recorder != nil {
		s.recorder.RecordTurn(req.SessionID, model, req.Message, result.Text, result.Usage)
	}

	s.logger.Info("chat turn completed",
		slog.String("session_id", req.SessionID),
		slog.String("model", model),
		slog.Int("input_tokens", result.Usage.InputTokens),
		slog.Int("output_tokens", result.Usage.OutputTokens))
}

// buildInput assembles the upstream input: a plain string for text-only
// turns, or a single user message with attachment parts first and the text
// part last.
func buildInput(message string, attachments []domain.FileAttachment) any {
	if len(attachments) == 0 {
		return message
	}

	parts := make([]openai.ContentPart, 0, len(attachments)+1)
	for _, a := range attachments {
		if a.IsImage() {
			parts = append(parts, openai.ImagePart(a.DataURL()))
		} else {
			parts = append(parts, openai.FilePart(a.Filename, a.DataURL()))
		}
	}
	parts = append(parts, openai.TextPart(message))

	return []openai.InputMessage{{Role: "user", Content: parts}}
}

func usageFromResponse(u *openai.Usage) domain.TokenInfo {
	if u == nil {
		return domain.TokenInfo{}
	}
	return domain.TokenInfo{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
	}
}

func isGPT5(model string) bool {
	return strings.HasPrefix(model, "gpt-5")
}

func newTraceID() string {
	return "trace_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func newSpanID() string {
	return "span_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
