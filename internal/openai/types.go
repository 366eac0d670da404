package openai

import "encoding/json"

// ========== Responses API Types ==========

// ResponsesRequest is a request to the Responses API. Input is either a
// string or []InputMessage.
type ResponsesRequest struct {
	Model              string          `json:"model"`
	Input              any             `json:"input"`
	Instructions       string          `json:"instructions,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	MaxOutputTokens    int             `json:"max_output_tokens,omitempty"`
	Stream             bool            `json:"stream,omitempty"`
	Reasoning          *ReasoningParam `json:"reasoning,omitempty"`
	Text               *TextParam      `json:"text,omitempty"`
	Tools              []Tool          `json:"tools,omitempty"`
}

// Tool declares a function the model may call during a response.
type Tool struct {
	Type        string          `json:"type"` // "function"
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict,omitempty"`
}

// FunctionTool builds a function tool declaration.
func FunctionTool(name, description string, parameters json.RawMessage) Tool {
	return Tool{Type: "function", Name: name, Description: description, Parameters: parameters}
}

// FunctionCallOutputItem feeds a tool result back to the model as input on
// the follow-up request.
type FunctionCallOutputItem struct {
	Type   string `json:"type"` // "function_call_output"
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// FunctionCallOutput builds a function_call_output input item.
func FunctionCallOutput(callID, output string) FunctionCallOutputItem {
	return FunctionCallOutputItem{Type: "function_call_output", CallID: callID, Output: output}
}

// ReasoningParam controls reasoning effort on models that support it.
type ReasoningParam struct {
	Effort string `json:"effort,omitempty"` // minimal, low, medium, high
}

// TextParam controls output verbosity and structured output format.
type TextParam struct {
	Verbosity string      `json:"verbosity,omitempty"` // low, medium, high
	Format    *TextFormat `json:"format,omitempty"`
}

// TextFormat requests schema-constrained JSON output.
type TextFormat struct {
	Type   string          `json:"type"` // "json_schema"
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict bool            `json:"strict,omitempty"`
}

// InputMessage is one turn of input. Content is either a string or
// []ContentPart.
type InputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one piece of multimodal message content.
type ContentPart struct {
	Type     string `json:"type"` // input_text, input_image, input_file
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

// TextPart builds an input_text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "input_text", Text: text}
}

// ImagePart builds an input_image content part from a data or https URL.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "input_image", ImageURL: url}
}

// FilePart builds an input_file content part from base64 file data.
func FilePart(filename, dataURL string) ContentPart {
	return ContentPart{Type: "input_file", Filename: filename, FileData: dataURL}
}

// ResponsesResponse is a completed (non-streaming) response.
type ResponsesResponse struct {
	ID     string       `json:"id"`
	Object string       `json:"object"`
	Model  string       `json:"model"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
	Usage  *Usage       `json:"usage,omitempty"`

	// RawBody preserves the response bytes for debugging.
	RawBody []byte `json:"-"`
}

// OutputItem is one item in the response output array. Name, CallID, and
// Arguments are set on function_call items.
type OutputItem struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"` // message, reasoning, function_call
	Role      string          `json:"role,omitempty"`
	Content   []OutputContent `json:"content,omitempty"`
	Name      string          `json:"name,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
}

// OutputContent is one content block of an output message.
type OutputContent struct {
	Type string `json:"type"` // output_text, refusal
	Text string `json:"text,omitempty"`
}

// OutputText concatenates all output_text blocks in the response.
func (r *ResponsesResponse) OutputText() string {
	var text string
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				text += c.Text
			}
		}
	}
	return text
}

// FunctionCalls returns the function_call items of the response output, in
// order.
func (r *ResponsesResponse) FunctionCalls() []OutputItem {
	var calls []OutputItem
	for _, item := range r.Output {
		if item.Type == "function_call" {
			calls = append(calls, item)
		}
	}
	return calls
}

// Usage is the token accounting for a response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ========== Streaming Event Types ==========

// Streaming event types the consultant consumes. Other event types pass
// through unparsed.
const (
	EventOutputTextDelta   = "response.output_text.delta"
	EventResponseCompleted = "response.completed"
	EventResponseFailed    = "response.failed"
	EventError             = "error"
)

// TextDeltaEvent is the payload of a response.output_text.delta event.
type TextDeltaEvent struct {
	Delta string `json:"delta"`
}

// CompletedEvent is the payload of a response.completed event.
type CompletedEvent struct {
	Response ResponsesResponse `json:"response"`
}

// ========== Error Types ==========

// APIError is the error object the API returns on non-200 responses.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error *APIError `json:"error,omitempty"`
}

// ParseErrorResponse extracts an APIError from a response body, returning
// nil when the body is not an error envelope.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	return errResp.Error, nil
}
