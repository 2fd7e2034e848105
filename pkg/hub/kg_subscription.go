package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
	"github.com/syedsany6/a2a-runtime/pkg/jsonrpc"
)

// KGSubscription is one knowledge/subscribe stream: a bounded queue fed by
// the Knowledge Store's change matcher and drained by an SSE writer.
// Unlike a Task topic, overflow here is reported to the client as a
// KnowledgeSubscriptionError frame before the connection closes (§4.5).
type KGSubscription struct {
	mu       sync.Mutex
	ch       chan []byte
	closed   bool
	testMode bool
}

// NewKGSubscription creates a subscription with the default queue bound.
func NewKGSubscription() *KGSubscription {
	return &KGSubscription{ch: make(chan []byte, DefaultQueueBound)}
}

// Enqueue delivers a change event. On overflow it sends a single
// KnowledgeSubscriptionError frame (best-effort) and closes the
// subscription so the reader exits with an explicit diagnostic rather
// than silently stalling.
func (s *KGSubscription) Enqueue(requestID any, event any) {
	msg, err := json.Marshal(jsonrpc.NewResult(requestID, event))
	if err != nil {
		log.Error("kg subscription: failed to marshal change event", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- msg:
		return
	default:
	}

	errMsg, _ := json.Marshal(jsonrpc.NewError(requestID, errors.ErrKnowledgeSubscriptionError.WithMessagef("subscriber queue exceeded %d events", DefaultQueueBound)))
	select {
	case s.ch <- errMsg:
	default:
	}
	s.closeLocked()
}

func (s *KGSubscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Close deregisters the subscription, e.g. on client disconnect.
func (s *KGSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Serve upgrades w into an SSE stream draining this subscription until the
// client disconnects or the subscription is closed.
func (s *KGSubscription) Serve(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	tickerInterval := 25 * time.Second
	if s.testMode {
		tickerInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.Close()
			return
		case msg, ok := <-s.ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}
