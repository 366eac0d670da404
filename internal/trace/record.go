// Package trace captures trace and span events emitted by the LLM runtime,
// keeps a bounded per-session history, and fans completed traces out to live
// SSE subscribers.
package trace

import "time"

// SpanKind classifies a span by the shape of its runtime payload.
type SpanKind string

const (
	SpanKindGeneration SpanKind = "generation"
	SpanKindFunction   SpanKind = "function"
	SpanKindAgent      SpanKind = "agent"
	SpanKindUnknown    SpanKind = "unknown"
)

const (
	defaultTraceName = "Unknown Workflow"
	defaultSpanName  = "Unknown Operation"
)

// Record is one completed top-level unit of work. EndedAt and DurationMs are
// nil while the trace is still in flight.
type Record struct {
	TraceID    string         `json:"trace_id"`
	Name       string         `json:"name"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at"`
	DurationMs *int64         `json:"duration_ms"`
	Spans      []*SpanRecord  `json:"spans"`
	Metadata   map[string]any `json:"metadata"`
}

// clone returns a copy whose slices and maps the caller may hold without
// aliasing store internals. Span records are immutable once finalized, so
// sharing them is safe.
func (r *Record) clone() *Record {
	c := *r
	c.Spans = make([]*SpanRecord, len(r.Spans))
	copy(c.Spans, r.Spans)
	c.Metadata = make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// SpanRecord is one unit of work nested inside a trace.
type SpanRecord struct {
	SpanID     string         `json:"span_id"`
	TraceID    string         `json:"trace_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Kind       SpanKind       `json:"type"`
	Name       string         `json:"name"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at"`
	DurationMs *int64         `json:"duration_ms"`
	Data       map[string]any `json:"data"`

	// payload is the raw span_data supplied by the instrumentation layer.
	// The runtime may fill in outputs between span start and span end, so
	// Data is only extracted at finalization.
	payload map[string]any
}

func kindFromPayload(payload map[string]any) SpanKind {
	switch stringField(payload, "type") {
	case "generation":
		return SpanKindGeneration
	case "function":
		return SpanKindFunction
	case "agent":
		return SpanKindAgent
	default:
		return SpanKindUnknown
	}
}

func nameFromPayload(payload map[string]any) string {
	if name := stringField(payload, "name"); name != "" {
		return name
	}
	return defaultSpanName
}

// dataFromPayload extracts the kind-specific fields of a span payload.
// Extraction is best-effort: missing fields are simply absent.
func dataFromPayload(payload map[string]any) map[string]any {
	kind := kindFromPayload(payload)
	data := map[string]any{"type": string(kind)}

	var keys []string
	switch kind {
	case SpanKindGeneration:
		keys = []string{"model", "input", "output", "usage"}
	case SpanKindFunction:
		keys = []string{"name", "input", "output", "mcp_data"}
	case SpanKindAgent:
		keys = []string{"name", "handoffs", "tools", "output_type"}
	default:
		return data
	}

	for _, key := range keys {
		if v, ok := payload[key]; ok {
			data[key] = v
		}
	}
	return data
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}
