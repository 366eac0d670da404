package trace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberQueueSize bounds how many undelivered records a slow
	// subscriber may accumulate before deliveries to it are dropped.
	subscriberQueueSize = 100

	// defaultPublishTimeout bounds how long a single delivery may stall the
	// producer. A timed-out delivery is dropped, not retried.
	defaultPublishTimeout = 100 * time.Millisecond
)

// Subscription is one consumer's registration for a session's trace stream.
// The consumer drains Records until it disconnects, then unsubscribes.
type Subscription struct {
	id        string
	sessionID string
	ch        chan *Record
	done      <-chan struct{}
}

// Records returns the channel completed traces are delivered on.
func (s *Subscription) Records() <-chan *Record {
	return s.ch
}

// Hub fans completed trace records out to the subscribers of their session.
// Publishing never blocks the producer beyond a short per-subscriber bound
// and never propagates a failure into the producer's call path.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string][]*Subscription
	timeout     time.Duration
	logger      *slog.Logger
}

// NewHub creates a hub with no subscribers.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string][]*Subscription),
		timeout:     defaultPublishTimeout,
		logger:      logger,
	}
}

// Subscribe registers a new subscriber for a session and returns its
// subscription. The context is the subscriber's own lifetime: once it is
// cancelled the hub stops delivering to this subscription. The caller must
// still call Unsubscribe on its exit path to release the registration.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) *Subscription {
	sub := &Subscription{
		id:        uuid.New().String(),
		sessionID: sessionID,
		ch:        make(chan *Record, subscriberQueueSize),
		done:      ctx.Done(),
	}

	h.mu.Lock()
	h.subscribers[sessionID] = append(h.subscribers[sessionID], sub)
	h.mu.Unlock()

	h.logger.Debug("trace subscriber added", slog.String("session_id", sessionID))
	return sub
}

// Unsubscribe removes exactly the given subscription. Calling it twice, or
// with a subscription that was never registered, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	subs := h.subscribers[sub.sessionID]
	for i, existing := range subs {
		if existing.id == sub.id {
			h.subscribers[sub.sessionID] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[sub.sessionID]) == 0 {
		delete(h.subscribers, sub.sessionID)
	}
	h.mu.Unlock()

	h.logger.Debug("trace subscriber removed", slog.String("session_id", sub.sessionID))
}

// Publish delivers a finalized record to every subscriber of the session.
// Each delivery is attempted for at most the publish timeout; a full queue or
// a departed subscriber drops that one delivery without affecting the others.
func (h *Hub) Publish(sessionID string, rec *Record) {
	h.mu.Lock()
	subs := make([]*Subscription, len(h.subscribers[sessionID]))
	copy(subs, h.subscribers[sessionID])
	h.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	for _, sub := range subs {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(h.timeout)

		select {
		case sub.ch <- rec:
		case <-sub.done:
			h.logger.Debug("dropping trace for departed subscriber",
				slog.String("session_id", sessionID),
				slog.String("trace_id", rec.TraceID))
		case <-timer.C:
			h.logger.Warn("dropping trace for slow subscriber",
				slog.String("session_id", sessionID),
				slog.String("trace_id", rec.TraceID))
		}
	}
}

// SubscriberCount reports how many subscribers a session currently has.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[sessionID])
}
