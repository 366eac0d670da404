// Package domain defines the request, response, and formulation models shared
// across the consultant API.
package domain

// DefaultModel is used when a chat request does not name a model.
const DefaultModel = "gpt-4.1-mini-2025-04-14"

// FileAttachment is a base64-encoded file sent alongside a chat message.
type FileAttachment struct {
	Filename   string `json:"filename"`
	Base64Data string `json:"base64_data"`
	MimeType   string `json:"mime_type"`
	FileSize   int64  `json:"file_size"`
}

// ChatRequest is the body of the streaming and non-streaming chat endpoints.
type ChatRequest struct {
	Message            string           `json:"message"`
	SessionID          string           `json:"session_id"`
	CustomInstructions string           `json:"custom_instructions,omitempty"`
	Model              string           `json:"model,omitempty"`
	Attachments        []FileAttachment `json:"attachments,omitempty"`
	PractitionerMode   bool             `json:"practitioner_mode,omitempty"`
	ReasoningEffort    string           `json:"reasoning_effort,omitempty"`
	Verbosity          string           `json:"verbosity,omitempty"`
}

// TokenInfo is the token usage of a single chat turn.
type TokenInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ChatResponse is the non-streaming chat reply.
type ChatResponse struct {
	Response     string    `json:"response"`
	SessionID    string    `json:"session_id"`
	Tokens       TokenInfo `json:"tokens"`
	CostZAR      float64   `json:"cost_zar"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
}

// SessionStats summarizes a session's accumulated usage and cost.
type SessionStats struct {
	SessionID         string  `json:"session_id"`
	Model             string  `json:"model,omitempty"`
	MessageCount      int     `json:"message_count"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalTokens       int     `json:"total_tokens"`
	CostZAR           float64 `json:"cost_zar"`
	CostFormatted     string  `json:"cost_formatted"`
}

// AgentStep is one progress event from the multi-agent formulation pipeline.
type AgentStep struct {
	AgentName string         `json:"agent_name"`
	StepType  string         `json:"step_type"` // thinking, result, error
	Content   string         `json:"content"`
	Data      map[string]any `json:"data,omitempty"`
}

// MultiAgentBlendRequest carries the health profile driving a formulation.
type MultiAgentBlendRequest struct {
	SessionID          string  `json:"session_id"`
	PatientName        string  `json:"patient_name,omitempty"`
	Age                int     `json:"age,omitempty"`
	Sex                string  `json:"sex,omitempty"`
	Weight             float64 `json:"weight,omitempty"`
	HealthGoals        string  `json:"health_goals"`
	DietaryPreferences string  `json:"dietary_preferences,omitempty"`
	MedicalConditions  string  `json:"medical_conditions,omitempty"`
	Medications        string  `json:"medications,omitempty"`
	AdditionalInfo     string  `json:"additional_info,omitempty"`
}

// SelectedIngredient is one ingredient chosen by the supplement specialist.
type SelectedIngredient struct {
	Name          string  `json:"name"`
	Dosage        float64 `json:"dosage"`
	Unit          string  `json:"unit"`
	Rationale     string  `json:"rationale"`
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
}

// SupplementRecommendation is the structured output of the supplement
// specialist stage.
type SupplementRecommendation struct {
	Ingredients         []SelectedIngredient `json:"ingredients"`
	DeliveryConstraints []string             `json:"delivery_constraints,omitempty"`
	TotalEstimatedCost  float64              `json:"total_estimated_cost"`
	ClinicalRationale   string               `json:"clinical_rationale"`
	SafetyNotes         string               `json:"safety_notes,omitempty"`
}

// BaseMixConfig names the carrier base the formulation is built on.
type BaseMixConfig struct {
	BaseMixID   int    `json:"base_mix_id"`
	BaseMixName string `json:"base_mix_name"`
	Rationale   string `json:"rationale"`
}

// AddMixConfig is one customization option layered onto the base mix.
type AddMixConfig struct {
	AddMixType string `json:"add_mix_type"` // Protein, Flavour, Sweetener, ...
	AddMixID   int    `json:"add_mix_id"`
	AddMixName string `json:"add_mix_name"`
}

// FormulationConfig is the structured output of the formulation specialist
// stage: the complete deliverable blend.
type FormulationConfig struct {
	BaseMix              BaseMixConfig        `json:"base_mix"`
	AddMixes             []AddMixConfig       `json:"add_mixes"`
	Ingredients          []SelectedIngredient `json:"ingredients"`
	DeliveryFormat       string               `json:"delivery_format"` // shake, drink, capsule
	UserInstructions     string               `json:"user_instructions"`
	FormulationRationale string               `json:"formulation_rationale"`
}
