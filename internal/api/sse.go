package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// sseDone is the terminator frame for chat and multi-agent streams. The
// trace stream has no terminator; it runs until the client disconnects.
const sseDone = "[DONE]"

// sseStream writes Server-Sent Events frames. Writes are serialized so the
// keepalive goroutine and the handler can share the connection.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEStream sets the event-stream headers and commits the 200 status.
// X-Accel-Buffering disables proxy buffering so tokens reach the client as
// they are produced.
func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseStream{w: w, flusher: flusher}, nil
}

// Data sends one data frame carrying the JSON encoding of v.
func (s *sseStream) Data(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Done sends the stream terminator frame.
func (s *sseStream) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "data: %s\n\n", sseDone)
	s.flusher.Flush()
}

// Comment sends an SSE comment line. Clients ignore it; proxies see traffic.
func (s *sseStream) Comment(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, ": %s\n\n", text)
	s.flusher.Flush()
}

// StartKeepalive emits keepalive comments every interval until the returned
// stop function is called or ctx is cancelled. Stop blocks until the
// goroutine has exited, so no write can race the handler's return.
func (s *sseStream) StartKeepalive(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Comment("keepalive")
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
