package trace

import (
	"sync"
	"time"
)

const (
	// MaxTracesPerSession bounds the per-session history. The oldest record
	// is evicted when a session completes more traces than this.
	MaxTracesPerSession = 10

	// UnknownSession is where traces land when no session was associated
	// before the trace ended.
	UnknownSession = "unknown"
)

// Store tracks in-flight trace and span construction and holds the finalized,
// capped, per-session history. All methods are safe for concurrent use; the
// instrumentation layer may invoke them from arbitrary goroutines.
type Store struct {
	mu sync.Mutex

	// sessions maps session ID to completed traces, oldest first.
	sessions map[string][]*Record

	// activeTraces and activeSpans index in-flight records by ID.
	activeTraces map[string]*Record
	activeSpans  map[string]*SpanRecord

	// traceSessions maps trace ID to the session it belongs to.
	traceSessions map[string]string

	now func() time.Time
}

// NewStore creates an empty trace store.
func NewStore() *Store {
	return &Store{
		sessions:      make(map[string][]*Record),
		activeTraces:  make(map[string]*Record),
		activeSpans:   make(map[string]*SpanRecord),
		traceSessions: make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Associate records the session a trace belongs to. It may be called at any
// point before the trace ends; last write wins. A trace that ends without an
// association is attributed to UnknownSession.
func (s *Store) Associate(traceID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traceSessions[traceID] = sessionID
}

// BeginTrace creates an in-flight record. A second begin for the same trace
// ID overwrites the first.
func (s *Store) BeginTrace(traceID, name string, metadata map[string]any) {
	if name == "" {
		name = defaultTraceName
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTraces[traceID] = &Record{
		TraceID:   traceID,
		Name:      name,
		StartedAt: s.now(),
		Spans:     []*SpanRecord{},
		Metadata:  metadata,
	}
}

// EndTrace finalizes the in-flight record, appends it to the owning session's
// buffer (evicting the oldest past MaxTracesPerSession), and returns the
// finalized record with its resolved session so the caller can broadcast it.
// An end event for a trace that was never begun, or already ended, returns
// (nil, "") and has no other effect.
func (s *Store) EndTrace(traceID string) (*Record, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.activeTraces[traceID]
	if !ok {
		return nil, ""
	}

	ended := s.now()
	rec.EndedAt = &ended
	durationMs := ended.Sub(rec.StartedAt).Milliseconds()
	rec.DurationMs = &durationMs

	sessionID, ok := s.traceSessions[traceID]
	if !ok {
		sessionID = UnknownSession
	}

	s.sessions[sessionID] = append(s.sessions[sessionID], rec)
	if len(s.sessions[sessionID]) > MaxTracesPerSession {
		s.sessions[sessionID] = s.sessions[sessionID][1:]
	}

	delete(s.activeTraces, traceID)
	delete(s.traceSessions, traceID)

	return rec, sessionID
}

// BeginSpan creates an in-flight span with its kind and name derived from the
// raw runtime payload. A second begin for the same span ID overwrites the
// first.
func (s *Store) BeginSpan(spanID, traceID, parentID string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSpans[spanID] = &SpanRecord{
		SpanID:    spanID,
		TraceID:   traceID,
		ParentID:  parentID,
		Kind:      kindFromPayload(payload),
		Name:      nameFromPayload(payload),
		StartedAt: s.now(),
		Data:      map[string]any{},
		payload:   payload,
	}
}

// EndSpan finalizes the in-flight span and appends it to its parent trace.
// If the parent trace is no longer in flight the span is discarded; the
// runtime may deliver span ends after the trace completed. Unknown span IDs
// are ignored.
func (s *Store) EndSpan(spanID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span, ok := s.activeSpans[spanID]
	if !ok {
		return
	}

	ended := s.now()
	span.EndedAt = &ended
	durationMs := ended.Sub(span.StartedAt).Milliseconds()
	span.DurationMs = &durationMs
	span.Data = dataFromPayload(span.payload)
	span.payload = nil

	if rec, ok := s.activeTraces[span.TraceID]; ok {
		rec.Spans = append(rec.Spans, span)
	}

	delete(s.activeSpans, spanID)
}

// Traces returns a snapshot of the session's completed traces, oldest first.
// The returned records do not alias store internals.
func (s *Store) Traces(sessionID string) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.sessions[sessionID]
	out := make([]*Record, len(recs))
	for i, rec := range recs {
		out[i] = rec.clone()
	}
	return out
}

// ClearSession discards the session's trace history. Live subscriptions are
// unaffected; buffer clearing and subscription lifecycle are independent.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Shutdown discards all state.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string][]*Record)
	s.activeTraces = make(map[string]*Record)
	s.activeSpans = make(map[string]*SpanRecord)
	s.traceSessions = make(map[string]string)
}
