package engine

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/cancel"
	"github.com/syedsany6/a2a-runtime/pkg/stores"
)

type recordingEmitter struct {
	events []any
	finals []bool
}

func (r *recordingEmitter) Publish(event any, final bool) error {
	r.events = append(r.events, event)
	r.finals = append(r.finals, final)
	return nil
}

func textParams(id, text string) a2a.TaskSendParams {
	return a2a.TaskSendParams{ID: id, Message: *a2a.NewTextMessage("user", text)}
}

func TestEngineSendCompletesNonTerminalHandler(t *testing.T) {
	Convey("Given an engine with a handler that returns without yielding terminal status", t, func() {
		store := stores.NewInMemoryTaskStore()
		eng := New(store, cancel.NewRegistry(), nil)
		emitter := &recordingEmitter{}

		handler := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
			return yield(ArtifactUpdate{Artifact: a2a.Artifact{Parts: []a2a.Part{a2a.NewTextPart("done")}}})
		}

		Convey("the task is forced to completed", func() {
			task, err := eng.Send(context.Background(), textParams("t1", "hello"), handler, emitter)
			So(err, ShouldBeNil)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			So(len(task.Artifacts), ShouldEqual, 1)
			So(emitter.finals[len(emitter.finals)-1], ShouldBeTrue)
		})
	})
}

func TestEngineSendHandlerError(t *testing.T) {
	Convey("Given a handler that returns an error", t, func() {
		store := stores.NewInMemoryTaskStore()
		eng := New(store, cancel.NewRegistry(), nil)

		handler := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
			return errors.New("boom")
		}

		Convey("the task transitions to failed", func() {
			task, err := eng.Send(context.Background(), textParams("t2", "hi"), handler, nil)
			So(err, ShouldNotBeNil)
			So(task.Status.State, ShouldEqual, a2a.TaskStateFailed)
			So(task.Status.Message, ShouldNotBeNil)
		})
	})
}

func TestEngineYieldHonorsCancellation(t *testing.T) {
	Convey("Given a task marked for cancellation", t, func() {
		store := stores.NewInMemoryTaskStore()
		registry := cancel.NewRegistry()
		eng := New(store, registry, nil)

		handler := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
			registry.Add(task.ID)
			return yield(StatusUpdate{State: a2a.TaskStateWorking})
		}

		Convey("the yield fails and the task ends canceled", func() {
			task, err := eng.Send(context.Background(), textParams("t3", "hi"), handler, nil)
			So(err, ShouldBeNil)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCanceled)
		})
	})
}

func TestEngineIncomingMessageTransitions(t *testing.T) {
	Convey("Given a task already in a terminal state", t, func() {
		store := stores.NewInMemoryTaskStore()
		eng := New(store, cancel.NewRegistry(), nil)

		completing := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
			return yield(StatusUpdate{State: a2a.TaskStateCompleted})
		}
		_, err := eng.Send(context.Background(), textParams("t4", "first"), completing, nil)
		So(err, ShouldBeNil)

		Convey("a new message resets it to submitted then the handler runs again", func() {
			noop := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
				So(task.Status.State, ShouldEqual, a2a.TaskStateSubmitted)
				return nil
			}
			task, err := eng.Send(context.Background(), textParams("t4", "second"), noop, nil)
			So(err, ShouldBeNil)
			So(len(task.History), ShouldEqual, 2)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)
		})
	})

	Convey("Given a task in input-required", t, func() {
		store := stores.NewInMemoryTaskStore()
		eng := New(store, cancel.NewRegistry(), nil)

		askInput := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
			return yield(StatusUpdate{State: a2a.TaskStateInputReq})
		}
		_, err := eng.Send(context.Background(), textParams("t5", "q"), askInput, nil)
		So(err, ShouldBeNil)

		Convey("a follow-up message moves it to working", func() {
			check := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
				So(task.Status.State, ShouldEqual, a2a.TaskStateWorking)
				return yield(StatusUpdate{State: a2a.TaskStateCompleted})
			}
			_, err := eng.Send(context.Background(), textParams("t5", "answer"), check, nil)
			So(err, ShouldBeNil)
		})
	})
}

func TestEngineArtifactMergeByIndex(t *testing.T) {
	Convey("Given a handler that appends to an indexed artifact across two yields", t, func() {
		store := stores.NewInMemoryTaskStore()
		eng := New(store, cancel.NewRegistry(), nil)
		appendTrue := true

		handler := func(ctx context.Context, task *a2a.Task, yield func(Update) error) error {
			if err := yield(ArtifactUpdate{Artifact: a2a.Artifact{
				Index: 0, IndexSet: true,
				Parts: []a2a.Part{a2a.NewTextPart("chunk1")},
			}}); err != nil {
				return err
			}
			return yield(ArtifactUpdate{Artifact: a2a.Artifact{
				Index: 0, IndexSet: true, Append: &appendTrue,
				Parts: []a2a.Part{a2a.NewTextPart("chunk2")},
			}})
		}

		Convey("the second chunk extends rather than replaces", func() {
			task, err := eng.Send(context.Background(), textParams("t6", "go"), handler, nil)
			So(err, ShouldBeNil)
			So(len(task.Artifacts), ShouldEqual, 1)
			So(len(task.Artifacts[0].Parts), ShouldEqual, 2)
			So(task.Artifacts[0].Parts[1].Text, ShouldEqual, "chunk2")
		})
	})
}

func TestEngineCancel(t *testing.T) {
	Convey("Given a task parked in working state", t, func() {
		store := stores.NewInMemoryTaskStore()
		registry := cancel.NewRegistry()
		eng := New(store, registry, nil)

		task := a2a.NewTask()
		task.ID = "t7"
		task.Status.State = a2a.TaskStateWorking
		So(store.Save(task), ShouldBeNil)

		Convey("Cancel transitions it and marks the registry", func() {
			updated, err := eng.Cancel("t7")
			So(err, ShouldBeNil)
			So(updated.Status.State, ShouldEqual, a2a.TaskStateCanceled)
			So(registry.Contains("t7"), ShouldBeTrue)
		})

		Convey("Cancel on an unknown id fails", func() {
			_, err := eng.Cancel("missing")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a task already completed", t, func() {
		store := stores.NewInMemoryTaskStore()
		eng := New(store, cancel.NewRegistry(), nil)

		task := a2a.NewTask()
		task.ID = "t8"
		task.Status.State = a2a.TaskStateCompleted
		So(store.Save(task), ShouldBeNil)

		Convey("Cancel is rejected", func() {
			_, err := eng.Cancel("t8")
			So(err, ShouldNotBeNil)
		})
	})
}
