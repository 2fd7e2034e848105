// Package engine implements the Task Engine (§4.4): the state machine that
// drives a Task from an incoming message through a Handler's yielded
// updates to a terminal state, persisting before it emits and honoring
// cancellation at every yield boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/cancel"
	apierrors "github.com/syedsany6/a2a-runtime/pkg/errors"
	"github.com/syedsany6/a2a-runtime/pkg/stores"
)

// StatusUpdate is yielded by a Handler to move the Task to a new status
// directly (§4.4: "a yielded StatusUpdate sets status.state directly").
type StatusUpdate struct {
	State    a2a.TaskState
	Message  *a2a.Message
	Metadata map[string]any
}

// ArtifactUpdate is yielded by a Handler to add or extend an artifact.
// It never changes Task status on its own (§4.4, I3).
type ArtifactUpdate struct {
	Artifact a2a.Artifact
}

// Update is the union a Handler yields: either a StatusUpdate or an
// ArtifactUpdate.
type Update any

// Handler performs the work behind a Task. It receives the Task as it
// stood when the Handler started (post incoming-message transition) and a
// yield function to publish progress; the Task pointer is shared state the
// engine mutates as updates are applied, so a Handler may read task.Status
// and task.Artifacts between yields to see its own effect.
type Handler func(ctx context.Context, task *a2a.Task, yield func(Update) error) error

// errCanceled is returned by yield once the Task's id has been marked in
// the Cancellation Registry; runHandler converts it into a canceled terminal
// status rather than propagating it as a failure.
var errCanceled = errors.New("engine: task canceled")

// Emitter publishes an engine-yielded event for one Task, typically backed
// by a *hub.Hub bound to a specific subscriber request id. Send accepts a
// nil Emitter when nobody is listening — e.g. tasks/send never streams, so
// it passes nil.
type Emitter interface {
	Publish(event any, final bool) error
}

// Notifier delivers a push notification for a Task's current state,
// per §4.6. Failures are the Notifier's own concern (retried internally);
// the Engine never blocks on or fails because of notification delivery.
type Notifier interface {
	Notify(ctx context.Context, task *a2a.Task, config a2a.PushNotificationConfig)
}

// Engine owns the Task Store and Cancellation Registry a Handler's yields
// are checked and persisted against. It holds no per-request state, so one
// Engine value is shared by every method the Dispatcher serves.
type Engine struct {
	store   stores.TaskStore
	cancels *cancel.Registry
	pusher  Notifier
}

// New constructs an Engine. pusher may be nil if push notifications are
// not configured.
func New(store stores.TaskStore, cancels *cancel.Registry, pusher Notifier) *Engine {
	return &Engine{store: store, cancels: cancels, pusher: pusher}
}

// Send runs handler to completion for params, applying the §4.4 incoming-
// message transition rules first. It always persists before it emits, and
// always emits via emitter if non-nil, whether or not the caller is
// streaming.
func (e *Engine) Send(ctx context.Context, params a2a.TaskSendParams, handler Handler, emitter Emitter) (*a2a.Task, error) {
	task, existed := e.loadOrCreate(params)
	if task.Status.State.IsTerminal() {
		// The message re-opens the task; a cancellation mark left from the
		// previous round must not cancel the new one.
		e.cancels.Remove(task.ID)
	}
	applyIncomingMessage(task, params.Message)

	if params.PushNotification != nil {
		e.store.SetPushNotification(task.ID, *params.PushNotification)
	}

	if err := e.store.Save(task); err != nil {
		return nil, fmt.Errorf("engine: persisting incoming message: %w", err)
	}

	if !existed {
		log.Debug("engine: task created", "taskId", task.ID, "state", task.Status.State)
	} else {
		log.Debug("engine: task resumed", "taskId", task.ID, "state", task.Status.State)
	}

	if err := e.runHandler(ctx, task, handler, emitter); err != nil {
		return task, err
	}
	return task, nil
}

func (e *Engine) loadOrCreate(params a2a.TaskSendParams) (*a2a.Task, bool) {
	if task, ok := e.store.Load(params.ID); ok {
		return task, true
	}

	task := a2a.NewTask()
	if params.ID != "" {
		task.ID = params.ID
	}
	if params.SessionID != "" {
		task.SessionID = params.SessionID
	}
	return task, false
}

// applyIncomingMessage appends msg to history and applies §4.4's state
// transition rules for a new incoming message:
//
//	terminal         -> submitted (new Task round)
//	input-required   -> working
//	submitted/working -> unchanged
func applyIncomingMessage(task *a2a.Task, msg a2a.Message) {
	task.History = append(task.History, msg)

	switch {
	case task.Status.State.IsTerminal():
		task.Status = a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: time.Now().UTC()}
	case task.Status.State == a2a.TaskStateInputReq:
		task.Status = a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: time.Now().UTC()}
	}
}

// runHandler drives handler to completion, applying each yielded Update in
// order: check cancellation, mutate task, persist, emit, push-notify.
func (e *Engine) runHandler(ctx context.Context, task *a2a.Task, handler Handler, emitter Emitter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: handler panic: %v", r)
		}
	}()

	yield := func(u Update) error {
		if e.cancels.Contains(task.ID) {
			return errCanceled
		}

		var event any
		final := false

		switch v := u.(type) {
		case StatusUpdate:
			task.Status = a2a.TaskStatus{State: v.State, Message: v.Message, Timestamp: time.Now().UTC()}
			final = task.Status.State.IsTerminal()
			event = a2a.TaskStatusUpdateEvent{ID: task.ID, Status: task.Status, Final: final, Metadata: v.Metadata}
		case ArtifactUpdate:
			mergeArtifact(task, v.Artifact)
			event = a2a.TaskArtifactUpdateEvent{ID: task.ID, Artifact: v.Artifact}
		default:
			return fmt.Errorf("engine: unknown update type %T", u)
		}

		if err := e.store.Save(task); err != nil {
			return fmt.Errorf("engine: persisting yielded update: %w", err)
		}

		if emitter != nil {
			if err := emitter.Publish(event, final); err != nil {
				log.Warn("engine: emit failed", "taskId", task.ID, "error", err)
			}
		}

		e.notify(ctx, task)
		return nil
	}

	herr := handler(ctx, task, yield)

	switch {
	case herr != nil && errors.Is(herr, errCanceled):
		task.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: time.Now().UTC()}
	case herr != nil:
		task.Status = a2a.TaskStatus{
			State:     a2a.TaskStateFailed,
			Timestamp: time.Now().UTC(),
			Message:   a2a.NewTextMessage("agent", herr.Error()),
		}
	case !task.Status.State.IsTerminal() && task.Status.State != a2a.TaskStateInputReq:
		// Handler returned without yielding a terminal status: force
		// completion per §4.4. An input-required task is left parked so the
		// next incoming message can resume it.
		task.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: time.Now().UTC()}
	}

	if saveErr := e.store.Save(task); saveErr != nil {
		return fmt.Errorf("engine: persisting final status: %w", saveErr)
	}

	if emitter != nil {
		event := a2a.TaskStatusUpdateEvent{ID: task.ID, Status: task.Status, Final: true}
		if err := emitter.Publish(event, true); err != nil {
			log.Warn("engine: final emit failed", "taskId", task.ID, "error", err)
		}
	}

	e.notify(ctx, task)

	if herr != nil && !errors.Is(herr, errCanceled) {
		return herr
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, task *a2a.Task) {
	if e.pusher == nil {
		return
	}
	cfg, ok := e.store.GetPushNotification(task.ID)
	if !ok {
		return
	}
	e.pusher.Notify(ctx, task, cfg)
}

// Cancel marks taskID for cancellation and, if it is not already in a
// terminal state, transitions and persists it directly — honoring the
// case where no Handler is actively yielding to observe the registry
// (e.g. a Handler blocked on an external call with no yield boundary in
// between).
func (e *Engine) Cancel(taskID string) (*a2a.Task, error) {
	task, ok := e.store.Load(taskID)
	if !ok {
		return nil, apierrors.ErrTaskNotFound.WithMessagef("task %q not found", taskID)
	}
	if task.Status.State.IsTerminal() {
		return nil, apierrors.ErrTaskNotCancelable.WithMessagef("task %q is already %s", taskID, task.Status.State)
	}

	e.cancels.Add(taskID)
	task.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: time.Now().UTC()}
	if err := e.store.Save(task); err != nil {
		return nil, fmt.Errorf("engine: persisting cancellation: %w", err)
	}
	return task, nil
}
