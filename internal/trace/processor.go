package trace

import "log/slog"

// Processor bridges the LLM runtime's instrumentation callbacks to the store
// and the hub. The runtime invokes the On* methods synchronously from its own
// goroutines; none of them block beyond the hub's per-delivery bound and none
// of them return an error — a trace bookkeeping failure must degrade
// observability, never availability.
type Processor struct {
	store  *Store
	hub    *Hub
	logger *slog.Logger
}

// NewProcessor wires a store and hub into an instrumentation processor.
// One instance is constructed at startup and injected wherever trace events
// originate; there is no package-level singleton.
func NewProcessor(store *Store, hub *Hub, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, hub: hub, logger: logger}
}

// AssociateSession records which session a trace belongs to. Call any time
// before the trace ends.
func (p *Processor) AssociateSession(traceID, sessionID string) {
	p.store.Associate(traceID, sessionID)
}

// OnTraceStart is invoked when a traced unit of work begins.
func (p *Processor) OnTraceStart(traceID, name string, metadata map[string]any) {
	p.store.BeginTrace(traceID, name, metadata)
}

// OnTraceEnd finalizes the trace and broadcasts it to the session's
// subscribers. Duplicate or unknown trace ends are ignored.
func (p *Processor) OnTraceEnd(traceID string) {
	rec, sessionID := p.store.EndTrace(traceID)
	if rec == nil {
		return
	}

	p.logger.Debug("trace completed",
		slog.String("trace_id", traceID),
		slog.String("session_id", sessionID),
		slog.Int("spans", len(rec.Spans)))

	// Subscribers get a copy; the stored record's Metadata map stays private
	// to the store.
	p.hub.Publish(sessionID, rec.clone())
}

// OnSpanStart is invoked when a nested unit of work begins.
func (p *Processor) OnSpanStart(spanID, traceID, parentID string, payload map[string]any) {
	p.store.BeginSpan(spanID, traceID, parentID, payload)
}

// OnSpanEnd finalizes the span and attaches it to its parent trace.
func (p *Processor) OnSpanEnd(spanID string) {
	p.store.EndSpan(spanID)
}

// Shutdown discards all buffered state.
func (p *Processor) Shutdown() {
	p.store.Shutdown()
}
