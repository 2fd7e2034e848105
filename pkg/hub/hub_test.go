package hub

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/jsonrpc"
)

func newTestServer(h http.Handler) (*httptest.Server, error) {
	var srv *httptest.Server
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("listener not permitted: %v", r)
			}
		}()
		srv = httptest.NewServer(h)
	}()
	return srv, err
}

func TestHubPublishAndSubscribe(t *testing.T) {
	h := NewTestHub()

	ts, err := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Subscribe(w, r, "task-1")
	}))
	if err != nil {
		t.Skip("network disabled; skipping SSE test")
	}
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("client get: %v", err)
	}
	defer resp.Body.Close()

	time.Sleep(10 * time.Millisecond)

	ev := a2a.TaskStatusUpdateEvent{
		ID:    "task-1",
		Final: true,
		Status: a2a.TaskStatus{
			State: a2a.TaskStateCompleted,
		},
	}
	if err := h.Publish("task-1", "req-1", ev, true); err != nil {
		t.Fatalf("publish: %v", err)
	}

	reader := bufio.NewReader(resp.Body)
	var line string
	deadline := time.After(time.Second)
L:
	for {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for SSE data line")
		default:
			line, err = reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if strings.HasPrefix(line, "data: ") {
				break L
			}
		}
	}

	payload := strings.TrimPrefix(strings.TrimSpace(line), "data: ")

	var got jsonrpc.Response
	if err := json.Unmarshal([]byte(payload), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "req-1" {
		t.Fatalf("expected id req-1, got %v", got.ID)
	}

	resp.Body.Close()
	h.Close("task-1")
}

func TestHubPublishDropsOnFullSubscriber(t *testing.T) {
	h := New()
	topic := h.topicFor("task-2")
	sub := &subscriber{ch: make(chan []byte)} // unbuffered: always full under select/default
	topic.subs[sub] = struct{}{}

	if err := h.Publish("task-2", "req", a2a.TaskStatusUpdateEvent{ID: "task-2"}, false); err != nil {
		t.Fatalf("publish: %v", err)
	}

	topic.mu.RLock()
	_, stillPresent := topic.subs[sub]
	topic.mu.RUnlock()
	if stillPresent {
		t.Fatal("expected overflowing subscriber to be dropped")
	}
}
