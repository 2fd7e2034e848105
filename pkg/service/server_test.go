package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

func TestServerHandleRPCTaskSend(t *testing.T) {
	Convey("Given a server wrapping a dispatcher", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{})
		srv := NewServer(d)
		ts := httptest.NewServer(srv.Mux())
		defer ts.Close()

		Convey("POSTing a tasks/send request returns the completed task", func() {
			body, _ := json.Marshal(map[string]any{
				"jsonrpc": "2.0",
				"id":      1,
				"method":  "tasks/send",
				"params": map[string]any{
					"id": "t1",
					"message": map[string]any{
						"role":  "user",
						"parts": []map[string]any{{"type": "text", "text": "hello"}},
					},
				},
			})

			resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var decoded map[string]any
			So(json.NewDecoder(resp.Body).Decode(&decoded), ShouldBeNil)
			So(decoded["error"], ShouldBeNil)
			result := decoded["result"].(map[string]any)
			status := result["status"].(map[string]any)
			So(status["state"], ShouldEqual, "completed")
		})

		Convey("an unknown method returns MethodNotFound over HTTP 404", func() {
			body, _ := json.Marshal(map[string]any{
				"jsonrpc": "2.0",
				"id":      2,
				"method":  "does/not-exist",
			})
			resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServerHandleCard(t *testing.T) {
	Convey("Given a server", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{})
		d.Card.Name = "test-agent"
		srv := NewServer(d)
		ts := httptest.NewServer(srv.Mux())
		defer ts.Close()

		Convey("GET /.well-known/agent.json serves the card", func() {
			resp, err := http.Get(ts.URL + "/.well-known/agent.json")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var card a2a.AgentCard
			So(json.NewDecoder(resp.Body).Decode(&card), ShouldBeNil)
			So(card.Name, ShouldEqual, "test-agent")
		})
	})
}
