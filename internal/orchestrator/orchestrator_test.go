package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tailorblend/consultant-api/internal/catalog"
	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/openai"
	"github.com/tailorblend/consultant-api/internal/trace"
)

const testRecommendation = `{
  "ingredients": [
    {"name": "Magnesium Glycinate", "dosage": 400, "unit": "mg", "rationale": "sleep support", "estimated_cost": 45},
    {"name": "L-Theanine", "dosage": 200, "unit": "mg", "rationale": "stress", "estimated_cost": 38.5}
  ],
  "delivery_constraints": ["L-THEANINE must be in drink"],
  "total_estimated_cost": 83.5,
  "clinical_rationale": "Sleep and stress stack.",
  "safety_notes": ""
}`

const testFormulation = `{
  "base_mix": {"base_mix_id": 2, "base_mix_name": "Drink", "rationale": "liquid-only constraint"},
  "add_mixes": [{"add_mix_type": "Flavour", "add_mix_id": 7, "add_mix_name": "Berry"}],
  "ingredients": [],
  "delivery_format": "drink",
  "user_instructions": "Mix with 300ml cold water in the evening.",
  "formulation_rationale": "Drink base satisfies the delivery constraint."
}`

// scriptedProvider returns canned structured outputs in call order.
type scriptedProvider struct {
	outputs  []string
	calls    []*openai.ResponsesRequest
	failCall int // 1-based call index to fail on; 0 disables
}

func (p *scriptedProvider) CreateResponse(_ context.Context, req *openai.ResponsesRequest) (*openai.ResponsesResponse, error) {
	p.calls = append(p.calls, req)
	if p.failCall == len(p.calls) {
		return nil, fmt.Errorf("upstream unavailable")
	}
	text := p.outputs[len(p.calls)-1]
	return &openai.ResponsesResponse{
		ID:     fmt.Sprintf("resp_%d", len(p.calls)),
		Status: "completed",
		Output: []openai.OutputItem{{
			Type:    "message",
			Role:    "assistant",
			Content: []openai.OutputContent{{Type: "output_text", Text: text}},
		}},
		Usage: &openai.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
	}, nil
}

func newTestOrchestrator(t *testing.T, provider Provider) (*Orchestrator, *trace.Store) {
	t.Helper()
	dir := t.TempDir()

	ingredients := filepath.Join(dir, "Ingredients3.json")
	baseMixes := filepath.Join(dir, "BaseAddMixes2.json")
	os.WriteFile(ingredients, []byte(`[{"ingredientId": 1, "name": "Magnesium Glycinate", "unitOfMeasureName": "mg"}]`), 0o644)
	os.WriteFile(baseMixes, []byte(`[{"baseMixId": 2, "name": "Drink"}]`), 0o644)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := trace.NewStore()
	hub := trace.NewHub(logger)
	o := New(provider, catalog.NewDatabase(ingredients, baseMixes), trace.NewProcessor(store, hub, logger), logger)
	return o, store
}

func collectSteps(t *testing.T, o *Orchestrator, req domain.MultiAgentBlendRequest) []domain.AgentStep {
	t.Helper()
	var steps []domain.AgentStep
	err := o.CreateBlend(context.Background(), req, func(step domain.AgentStep) error {
		steps = append(steps, step)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return steps
}

func TestCreateBlendHappyPath(t *testing.T) {
	provider := &scriptedProvider{outputs: []string{testRecommendation, testFormulation}}
	o, store := newTestOrchestrator(t, provider)

	steps := collectSteps(t, o, domain.MultiAgentBlendRequest{
		SessionID:          "s1",
		PatientName:        "Thandi",
		Age:                34,
		Sex:                "Female",
		Weight:             62,
		HealthGoals:        "better sleep, less stress",
		DietaryPreferences: "vegan",
	})

	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d: %+v", len(steps), steps)
	}

	wantTypes := []string{"thinking", "result", "thinking", "result", "result"}
	for i, step := range steps {
		if step.StepType != wantTypes[i] {
			t.Errorf("step %d: expected %s, got %s", i, wantTypes[i], step.StepType)
		}
	}

	if !strings.Contains(steps[1].Content, "Selected 2 ingredients") ||
		!strings.Contains(steps[1].Content, "R83.50") {
		t.Errorf("unexpected supplement result content: %s", steps[1].Content)
	}
	if !strings.Contains(steps[3].Content, "Configured Drink with 1 customizations") {
		t.Errorf("unexpected formulation result content: %s", steps[3].Content)
	}
	if steps[4].AgentName != "Multi-Agent System" {
		t.Errorf("final step from %s", steps[4].AgentName)
	}

	// The specialist inputs are plain-language profiles, not raw JSON.
	profile, _ := provider.calls[0].Input.(string)
	if !strings.Contains(profile, "Patient: Thandi") ||
		!strings.Contains(profile, "Demographics: 34 years old, female, 62kg") ||
		!strings.Contains(profile, "Health Goals: better sleep, less stress") {
		t.Errorf("unexpected patient profile:\n%s", profile)
	}

	formulationInput, _ := provider.calls[1].Input.(string)
	if !strings.Contains(formulationInput, "Magnesium Glycinate: 400mg") ||
		!strings.Contains(formulationInput, "L-THEANINE must be in drink") {
		t.Errorf("unexpected formulation input:\n%s", formulationInput)
	}

	// Both calls request schema-constrained output.
	for i, call := range provider.calls {
		if call.Text == nil || call.Text.Format == nil || call.Text.Format.Type != "json_schema" {
			t.Errorf("call %d missing json_schema format", i)
		}
	}

	// The whole run lands as one trace with agent and generation spans.
	traces := store.Traces("s1")
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace, got %d", len(traces))
	}
	if traces[0].Name != "Multi-Agent Formulation" {
		t.Errorf("unexpected workflow name %s", traces[0].Name)
	}
	var agents, generations int
	for _, span := range traces[0].Spans {
		switch span.Kind {
		case trace.SpanKindAgent:
			agents++
		case trace.SpanKindGeneration:
			generations++
		}
	}
	if agents != 2 || generations != 2 {
		t.Errorf("expected 2 agent + 2 generation spans, got %d/%d", agents, generations)
	}
}

func TestCreateBlendUpstreamFailure(t *testing.T) {
	provider := &scriptedProvider{outputs: []string{testRecommendation, testFormulation}, failCall: 2}
	o, _ := newTestOrchestrator(t, provider)

	steps := collectSteps(t, o, domain.MultiAgentBlendRequest{
		SessionID:   "s1",
		HealthGoals: "energy",
	})

	last := steps[len(steps)-1]
	if last.StepType != "error" {
		t.Fatalf("expected terminal error step, got %+v", last)
	}
	if !strings.Contains(last.Content, "formulation specialist") {
		t.Errorf("error should name the failing stage: %s", last.Content)
	}
}

func TestCreateBlendMalformedOutput(t *testing.T) {
	provider := &scriptedProvider{outputs: []string{"not json at all", testFormulation}}
	o, _ := newTestOrchestrator(t, provider)

	steps := collectSteps(t, o, domain.MultiAgentBlendRequest{
		SessionID:   "s1",
		HealthGoals: "focus",
	})

	last := steps[len(steps)-1]
	if last.StepType != "error" {
		t.Fatalf("expected error step for malformed output, got %+v", last)
	}
}

func TestSchemasAreValidJSON(t *testing.T) {
	for name, schema := range map[string]json.RawMessage{
		"supplement":  supplementRecommendationSchema,
		"formulation": formulationConfigSchema,
	} {
		var v map[string]any
		if err := json.Unmarshal(schema, &v); err != nil {
			t.Errorf("%s schema invalid: %v", name, err)
		}
	}
}
