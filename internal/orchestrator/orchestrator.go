// Package orchestrator coordinates the two-stage formulation pipeline: a
// supplement specialist selects ingredients and dosages, then a formulation
// specialist configures the base mix and delivery format around them.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tailorblend/consultant-api/internal/catalog"
	"github.com/tailorblend/consultant-api/internal/domain"
	"github.com/tailorblend/consultant-api/internal/openai"
	"github.com/tailorblend/consultant-api/internal/trace"
)

const (
	workflowName = "Multi-Agent Formulation"

	// specialistModel runs both stages. Structured output quality matters
	// more than latency here.
	specialistModel = "gpt-5-mini"
)

// Provider is the upstream API surface the orchestrator depends on.
type Provider interface {
	CreateResponse(ctx context.Context, req *openai.ResponsesRequest) (*openai.ResponsesResponse, error)
}

// Orchestrator runs the formulation pipeline and streams progress steps.
type Orchestrator struct {
	provider Provider
	database *catalog.Database
	traces   *trace.Processor
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(provider Provider, database *catalog.Database, traces *trace.Processor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider: provider,
		database: database,
		traces:   traces,
		logger:   logger,
	}
}

// CreateBlend executes the pipeline, invoking emit for each progress step.
// Errors are reported as a terminal error step rather than a returned error
// so the stream always carries the failure reason to the client.
func (o *Orchestrator) CreateBlend(ctx context.Context, req domain.MultiAgentBlendRequest, emit func(domain.AgentStep) error) error {
	traceID := "trace_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	o.traces.AssociateSession(traceID, req.SessionID)
	o.traces.OnTraceStart(traceID, workflowName, map[string]any{"session_id": req.SessionID})
	defer o.traces.OnTraceEnd(traceID)

	if err := o.runPipeline(ctx, traceID, req, emit); err != nil {
		o.logger.Error("formulation pipeline failed",
			slog.String("session_id", req.SessionID),
			slog.Any("error", err))
		return emit(domain.AgentStep{
			AgentName: "Multi-Agent System",
			StepType:  "error",
			Content:   fmt.Sprintf("Error during formulation: %v", err),
			Data:      map[string]any{"error_message": err.Error()},
		})
	}
	return nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, traceID string, req domain.MultiAgentBlendRequest, emit func(domain.AgentStep) error) error {
	// Stage 1: supplement specialist selects ingredients.
	if err := emit(domain.AgentStep{
		AgentName: "Supplement Specialist",
		StepType:  "thinking",
		Content:   "Analyzing health profile and selecting optimal ingredients...",
	}); err != nil {
		return err
	}

	recommendation, err := o.runSupplementSpecialist(ctx, traceID, req)
	if err != nil {
		return fmt.Errorf("supplement specialist: %w", err)
	}

	if err := emit(domain.AgentStep{
		AgentName: "Supplement Specialist",
		StepType:  "result",
		Content: fmt.Sprintf("Selected %d ingredients. Estimated cost: R%.2f",
			len(recommendation.Ingredients), recommendation.TotalEstimatedCost),
		Data: map[string]any{
			"ingredients":          recommendation.Ingredients,
			"clinical_rationale":   recommendation.ClinicalRationale,
			"delivery_constraints": recommendation.DeliveryConstraints,
		},
	}); err != nil {
		return err
	}

	// Stage 2: formulation specialist configures delivery.
	if err := emit(domain.AgentStep{
		AgentName: "Formulation Specialist",
		StepType:  "thinking",
		Content:   "Configuring optimal base mix and delivery format...",
	}); err != nil {
		return err
	}

	config, err := o.runFormulationSpecialist(ctx, traceID, req, recommendation)
	if err != nil {
		return fmt.Errorf("formulation specialist: %w", err)
	}

	if err := emit(domain.AgentStep{
		AgentName: "Formulation Specialist",
		StepType:  "result",
		Content: fmt.Sprintf("Configured %s with %d customizations.",
			config.BaseMix.BaseMixName, len(config.AddMixes)),
		Data: map[string]any{
			"base_mix":              config.BaseMix,
			"add_mixes":             config.AddMixes,
			"delivery_format":       config.DeliveryFormat,
			"user_instructions":     config.UserInstructions,
			"formulation_rationale": config.FormulationRationale,
		},
	}); err != nil {
		return err
	}

	return emit(domain.AgentStep{
		AgentName: "Multi-Agent System",
		StepType:  "result",
		Content:   "Formulation complete!",
		Data: map[string]any{
			"supplement_recommendation": recommendation,
			"formulation_config":        config,
			"summary": map[string]any{
				"total_ingredients": len(recommendation.Ingredients),
				"total_cost":        recommendation.TotalEstimatedCost,
				"base_mix":          config.BaseMix.BaseMixName,
				"delivery_format":   config.DeliveryFormat,
			},
		},
	})
}

func (o *Orchestrator) runSupplementSpecialist(ctx context.Context, traceID string, req domain.MultiAgentBlendRequest) (*domain.SupplementRecommendation, error) {
	ingredients, err := o.database.IngredientsContext()
	if err != nil {
		return nil, err
	}

	var recommendation domain.SupplementRecommendation
	err = o.runAgent(ctx, traceID, agentRun{
		name:         "Supplement Specialist",
		instructions: supplementSpecialistInstructions(ingredients),
		input:        buildPatientProfile(req),
		schemaName:   "supplement_recommendation",
		schema:       supplementRecommendationSchema,
		outputType:   "SupplementRecommendation",
	}, &recommendation)
	if err != nil {
		return nil, err
	}
	return &recommendation, nil
}

func (o *Orchestrator) runFormulationSpecialist(ctx context.Context, traceID string, req domain.MultiAgentBlendRequest, rec *domain.SupplementRecommendation) (*domain.FormulationConfig, error) {
	baseMixes, err := o.database.BaseMixesContext()
	if err != nil {
		return nil, err
	}

	var config domain.FormulationConfig
	err = o.runAgent(ctx, traceID, agentRun{
		name:         "Formulation Specialist",
		instructions: formulationSpecialistInstructions(baseMixes),
		input:        buildFormulationInput(req, rec),
		schemaName:   "formulation_config",
		schema:       formulationConfigSchema,
		outputType:   "FormulationConfig",
	}, &config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

type agentRun struct {
	name         string
	instructions string
	input        string
	schemaName   string
	schema       json.RawMessage
	outputType   string
}

// runAgent executes one specialist call with schema-constrained output and
// unmarshals the result into out. The call is recorded as an agent span
// containing a nested generation span.
func (o *Orchestrator) runAgent(ctx context.Context, traceID string, run agentRun, out any) error {
	agentSpanID := newSpanID()
	o.traces.OnSpanStart(agentSpanID, traceID, "", map[string]any{
		"type":        "agent",
		"name":        run.name,
		"output_type": run.outputType,
	})
	defer o.traces.OnSpanEnd(agentSpanID)

	genSpanID := newSpanID()
	genPayload := map[string]any{
		"type":  "generation",
		"model": specialistModel,
		"input": run.input,
	}
	o.traces.OnSpanStart(genSpanID, traceID, agentSpanID, genPayload)

	resp, err := o.provider.CreateResponse(ctx, &openai.ResponsesRequest{
		Model:        specialistModel,
		Input:        run.input,
		Instructions: run.instructions,
		Text: &openai.TextParam{
			Format: &openai.TextFormat{
				Type:   "json_schema",
				Name:   run.schemaName,
				Schema: run.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		genPayload["output"] = fmt.Sprintf("error: %v", err)
		o.traces.OnSpanEnd(genSpanID)
		return err
	}

	text := resp.OutputText()
	genPayload["output"] = text
	if resp.Usage != nil {
		genPayload["usage"] = map[string]any{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
			"total_tokens":  resp.Usage.TotalTokens,
		}
	}
	o.traces.OnSpanEnd(genSpanID)

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parse %s output: %w", run.name, err)
	}
	return nil
}

// buildPatientProfile renders the request as natural language input for the
// supplement specialist.
func buildPatientProfile(req domain.MultiAgentBlendRequest) string {
	var parts []string

	if req.PatientName != "" {
		parts = append(parts, "Patient: "+req.PatientName)
	}

	var demographics []string
	if req.Age > 0 {
		demographics = append(demographics, fmt.Sprintf("%d years old", req.Age))
	}
	if req.Sex != "" {
		demographics = append(demographics, strings.ToLower(req.Sex))
	}
	if req.Weight > 0 {
		demographics = append(demographics, fmt.Sprintf("%gkg", req.Weight))
	}
	if len(demographics) > 0 {
		parts = append(parts, "Demographics: "+strings.Join(demographics, ", "))
	}

	parts = append(parts, "Health Goals: "+req.HealthGoals)

	if req.DietaryPreferences != "" {
		parts = append(parts, "Dietary: "+req.DietaryPreferences)
	}
	if req.MedicalConditions != "" {
		parts = append(parts, "Medical Conditions: "+req.MedicalConditions)
	}
	if req.Medications != "" {
		parts = append(parts, "Current Medications: "+req.Medications)
	}
	if req.AdditionalInfo != "" {
		parts = append(parts, "Additional Info: "+req.AdditionalInfo)
	}

	return strings.Join(parts, "\n")
}

// buildFormulationInput combines the selected ingredients and patient
// preferences into input for the formulation specialist.
func buildFormulationInput(req domain.MultiAgentBlendRequest, rec *domain.SupplementRecommendation) string {
	var parts []string

	parts = append(parts, "SELECTED INGREDIENTS:")
	for _, ing := range rec.Ingredients {
		parts = append(parts, fmt.Sprintf("  - %s: %g%s", ing.Name, ing.Dosage, ing.Unit))
	}

	if len(rec.DeliveryConstraints) > 0 {
		parts = append(parts, "", "DELIVERY CONSTRAINTS:")
		for _, constraint := range rec.DeliveryConstraints {
			parts = append(parts, "  - "+constraint)
		}
	}

	parts = append(parts, "", "PATIENT PREFERENCES:")
	if req.DietaryPreferences != "" {
		parts = append(parts, "  - Dietary: "+req.DietaryPreferences)
	}
	if req.AdditionalInfo != "" {
		parts = append(parts, "  - Additional: "+req.AdditionalInfo)
	}

	return strings.Join(parts, "\n")
}

func newSpanID() string {
	return "span_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
