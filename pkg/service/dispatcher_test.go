package service

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/cancel"
	"github.com/syedsany6/a2a-runtime/pkg/engine"
	"github.com/syedsany6/a2a-runtime/pkg/hub"
	"github.com/syedsany6/a2a-runtime/pkg/kg"
	"github.com/syedsany6/a2a-runtime/pkg/stores"
)

func newTestDispatcher(caps a2a.AgentCapabilities) *Dispatcher {
	store := stores.NewInMemoryTaskStore()
	cancels := cancel.NewRegistry()
	eng := engine.New(store, cancels, nil)
	kgStore := kg.NewInMemoryStore(kg.AlwaysVerifyPolicy{})
	h := hub.NewTestHub()
	card := a2a.AgentCard{Name: "test-agent", Capabilities: caps}
	return NewDispatcher(card, eng, store, kgStore, h, cancels)
}

func sendParams(taskID, text string) a2a.TaskSendParams {
	return a2a.TaskSendParams{
		ID:      taskID,
		Message: *a2a.NewTextMessage("user", text),
	}
}

func TestDispatcherTaskSendAndGet(t *testing.T) {
	Convey("Given a dispatcher with no optional capabilities", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{})

		Convey("tasks/send creates and completes a task", func() {
			result, rpcErr := d.TaskSend(context.Background(), sendParams("t1", "hello"))
			So(rpcErr, ShouldBeNil)

			task, ok := result.(*a2a.Task)
			So(ok, ShouldBeTrue)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)

			Convey("tasks/get returns the same task", func() {
				raw, rpcErr := d.TaskGet(context.Background(), a2a.TaskQueryParams{TaskIDParams: a2a.TaskIDParams{ID: "t1"}})
				So(rpcErr, ShouldBeNil)
				got := raw.(*a2a.Task)
				So(got.ID, ShouldEqual, "t1")
				So(got.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			})
		})

		Convey("tasks/get on an unknown id is TaskNotFound", func() {
			_, rpcErr := d.TaskGet(context.Background(), a2a.TaskQueryParams{TaskIDParams: a2a.TaskIDParams{ID: "missing"}})
			So(rpcErr, ShouldNotBeNil)
			So(rpcErr.Code, ShouldEqual, -32001)
		})
	})
}

func TestDispatcherTaskCancel(t *testing.T) {
	Convey("Given a task that has already completed", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{})
		_, rpcErr := d.TaskSend(context.Background(), sendParams("t2", "hi"))
		So(rpcErr, ShouldBeNil)

		Convey("tasks/cancel rejects it as not cancelable", func() {
			_, rpcErr := d.TaskCancel(context.Background(), a2a.TaskIDParams{ID: "t2"})
			So(rpcErr, ShouldNotBeNil)
			So(rpcErr.Code, ShouldEqual, -32002)
		})
	})
}

func TestDispatcherCapabilityGating(t *testing.T) {
	Convey("Given a dispatcher with knowledgeGraph disabled", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{})
		caps := d.Card.Capabilities

		Convey("lookup-equivalent gate reports MethodNotFound", func() {
			rpcErr := gate(caps.KnowledgeGraph, d.KG != nil)
			So(rpcErr, ShouldNotBeNil)
			So(rpcErr.Code, ShouldEqual, -32601)
		})
	})

	Convey("Given a dispatcher with knowledgeGraph enabled but no backing store", t, func() {
		store := stores.NewInMemoryTaskStore()
		cancels := cancel.NewRegistry()
		eng := engine.New(store, cancels, nil)
		h := hub.NewTestHub()
		card := a2a.AgentCard{Capabilities: a2a.AgentCapabilities{KnowledgeGraph: true}}
		d := NewDispatcher(card, eng, store, nil, h, cancels)

		Convey("the gate reports UnsupportedOperation", func() {
			rpcErr := gate(d.Card.Capabilities.KnowledgeGraph, d.KG != nil)
			So(rpcErr, ShouldNotBeNil)
			So(rpcErr.Code, ShouldEqual, -32004)
		})
	})
}

func TestDispatcherKnowledgeQueryLanguageGate(t *testing.T) {
	Convey("Given a dispatcher whose card declares only graphql", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{
			KnowledgeGraph:               true,
			KnowledgeGraphQueryLanguages: []string{"graphql"},
		})

		Convey("a query in an unsupported language is rejected", func() {
			params := a2a.KnowledgeQueryParams{QueryLanguage: "sparql", Query: "SELECT *"}
			_, rpcErr := d.KnowledgeQuery(context.Background(), params)
			So(rpcErr, ShouldNotBeNil)
			So(rpcErr.Code, ShouldEqual, -32010)
		})
	})
}

func TestDispatcherPushNotificationRoundTrip(t *testing.T) {
	Convey("Given a sent task", t, func() {
		d := newTestDispatcher(a2a.AgentCapabilities{PushNotifications: true})
		_, rpcErr := d.TaskSend(context.Background(), sendParams("t3", "hi"))
		So(rpcErr, ShouldBeNil)

		Convey("a push config can be set then fetched back", func() {
			_, rpcErr := d.SetPushNotification(context.Background(), a2a.TaskPushNotificationConfig{
				ID:                     "t3",
				PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.invalid/hook"},
			})
			So(rpcErr, ShouldBeNil)

			raw, rpcErr := d.GetPushNotification(context.Background(), a2a.TaskIDParams{ID: "t3"})
			So(rpcErr, ShouldBeNil)
			cfg := raw.(a2a.TaskPushNotificationConfig)
			So(cfg.PushNotificationConfig.URL, ShouldEqual, "https://example.invalid/hook")
		})
	})
}
