// Package hub implements the Subscription Hub (§4.5): per-Task SSE fan-out
// and per-subscription Knowledge Graph change delivery, both bounded and
// both tolerant of slow or disconnected consumers without blocking the
// producer.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/syedsany6/a2a-runtime/pkg/jsonrpc"
)

// DefaultQueueBound is the per-subscriber channel capacity from §4.5/§5
// ("Subscriber queues are bounded (default 1024)").
const DefaultQueueBound = 1024

type subscriber struct {
	ch chan []byte
}

// taskTopic fans out events for one Task id to every attached subscriber.
type taskTopic struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	closed   bool
	testMode bool
}

// Hub owns one taskTopic per Task id. KG subscriptions are not tracked by
// the Hub: each is a standalone KGSubscription (kg_subscription.go). Both
// use the same bounded-channel delivery; they differ in what overflow
// means for the subscriber (§4.5: a Task subscriber is simply
// disconnected, a KG subscriber additionally receives a
// KnowledgeSubscriptionError frame).
type Hub struct {
	mu         sync.RWMutex
	taskTopics map[string]*taskTopic
	testMode   bool
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{taskTopics: make(map[string]*taskTopic)}
}

// NewTestHub shortens the SSE heartbeat interval for fast tests.
func NewTestHub() *Hub {
	return &Hub{taskTopics: make(map[string]*taskTopic), testMode: true}
}

func (h *Hub) topicFor(taskID string) *taskTopic {
	h.mu.RLock()
	t, ok := h.taskTopics[taskID]
	h.mu.RUnlock()
	if ok {
		return t
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok = h.taskTopics[taskID]; ok {
		return t
	}
	t = &taskTopic{subs: make(map[*subscriber]struct{}), testMode: h.testMode}
	h.taskTopics[taskID] = t
	return t
}

// Subscribe upgrades the HTTP response into an SSE stream attached to
// taskID and blocks until the client disconnects or the topic closes.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, taskID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topic := h.topicFor(taskID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := &subscriber{ch: make(chan []byte, DefaultQueueBound)}

	topic.mu.Lock()
	if topic.closed {
		topic.mu.Unlock()
		http.Error(w, "task stream closed", http.StatusGone)
		return
	}
	topic.subs[sub] = struct{}{}
	topic.mu.Unlock()

	log.Debug("hub: subscriber attached", "taskId", taskID)

	tickerInterval := 25 * time.Second
	if topic.testMode {
		tickerInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			topic.remove(sub)
			return
		case msg, ok := <-sub.ch:
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

// Publish serializes an event as a JSON-RPC response for requestID and
// delivers it to every subscriber of taskID. A subscriber whose queue is
// full is dropped silently (§4.5: "on write error, remove that
// subscriber" — a full queue is this implementation's write error). If
// final is true, the topic is closed and all subscribers deregistered
// after delivery.
func (h *Hub) Publish(taskID string, requestID any, event any, final bool) error {
	msg, err := json.Marshal(jsonrpc.NewResult(requestID, event))
	if err != nil {
		return err
	}

	topic := h.topicFor(taskID)
	topic.mu.Lock()
	defer topic.mu.Unlock()

	if topic.closed {
		return nil
	}

	for sub := range topic.subs {
		select {
		case sub.ch <- msg:
		default:
			delete(topic.subs, sub)
			close(sub.ch)
		}
	}

	if final {
		h.closeTopicLocked(topic)
	}

	return nil
}

func (h *Hub) closeTopicLocked(t *taskTopic) {
	if t.closed {
		return
	}
	t.closed = true
	for sub := range t.subs {
		close(sub.ch)
	}
	t.subs = map[*subscriber]struct{}{}
}

// Close closes the topic for taskID, disconnecting all its subscribers.
func (h *Hub) Close(taskID string) {
	topic := h.topicFor(taskID)
	topic.mu.Lock()
	defer topic.mu.Unlock()
	h.closeTopicLocked(topic)
}

// remove detaches a single subscriber, used on client disconnect.
func (t *taskTopic) remove(sub *subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[sub]; ok {
		delete(t.subs, sub)
		close(sub.ch)
	}
}
