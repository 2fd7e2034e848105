// Package service implements the Dispatcher (C7) and Agent Card HTTP
// surface (C8): the JSON-RPC method table gated by AgentCard.Capabilities
// (§4.7), wired to the Task Engine, Task Store, Knowledge Store,
// Subscription Hub, and Cancellation Registry.
package service

import (
	"context"
	"encoding/json"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/cancel"
	"github.com/syedsany6/a2a-runtime/pkg/engine"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
	"github.com/syedsany6/a2a-runtime/pkg/hub"
	"github.com/syedsany6/a2a-runtime/pkg/kg"
	"github.com/syedsany6/a2a-runtime/pkg/stores"
)

// Dispatcher routes JSON-RPC methods to the engine/stores/kg collaborators,
// applying the capability gate from §4.7 before any method runs.
type Dispatcher struct {
	Card    a2a.AgentCard
	Engine  *engine.Engine
	Store   stores.TaskStore
	KG      kg.Store
	Hub     *hub.Hub
	Cancels *cancel.Registry
}

// NewDispatcher wires the collaborators behind one served AgentCard.
func NewDispatcher(card a2a.AgentCard, eng *engine.Engine, store stores.TaskStore, kgStore kg.Store, h *hub.Hub, cancels *cancel.Registry) *Dispatcher {
	return &Dispatcher{Card: card, Engine: eng, Store: store, KG: kgStore, Hub: h, Cancels: cancels}
}

// decodeParams re-marshals a loosely-typed params value (as produced by
// jsonrpc.ParseBody, which decodes Params into `any`) into a concrete
// struct.
func decodeParams(raw any, out any) *errors.RpcError {
	b, err := json.Marshal(raw)
	if err != nil {
		return errors.ErrInvalidParams.WithMessagef("re-marshaling params: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.ErrInvalidParams.WithMessagef("decoding params: %v", err)
	}
	return nil
}

// gate enforces §4.7's capability table: a disabled capability is
// MethodNotFound (the method doesn't exist on this agent), a capability
// that's enabled but whose backend can't actually serve it is
// UnsupportedOperation.
func gate(enabled bool, implemented bool) *errors.RpcError {
	if !enabled {
		return errors.ErrMethodNotFound
	}
	if !implemented {
		return errors.ErrUnsupportedOperation
	}
	return nil
}

// echoHandler is the Dispatcher's default Task Handler: it produces one
// text artifact echoing the triggering message's text parts, then
// completes. Dispatcher has no setter for its Handler: handler() always
// returns echoHandler.
func echoHandler(ctx context.Context, task *a2a.Task, yield func(engine.Update) error) error {
	msg := task.LastMessage()
	text := ""
	if msg != nil {
		text = msg.String()
	}
	return yield(engine.ArtifactUpdate{Artifact: a2a.Artifact{
		Index:    0,
		IndexSet: true,
		Parts:    []a2a.Part{a2a.NewTextPart(text)},
	}})
}

// TaskSend implements tasks/send (§4.7): run the Handler to completion,
// synchronously, with no Emitter — the caller only sees the final Task.
func (d *Dispatcher) TaskSend(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.TaskSendParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	for i := range params.Message.Parts {
		if err := params.Message.Parts[i].Validate(); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("message part %d: %v", i, err)
		}
	}

	task, err := d.Engine.Send(ctx, params, d.handler(), nil)
	if err != nil {
		return nil, errors.ErrInternal.WithMessagef("%v", err)
	}
	return task, nil
}

// TaskGet implements tasks/get.
func (d *Dispatcher) TaskGet(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.TaskQueryParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}

	task, ok := d.Store.Load(params.ID)
	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %q not found", params.ID)
	}

	if params.HistoryLength != nil && *params.HistoryLength >= 0 && *params.HistoryLength < len(task.History) {
		task.History = task.History[len(task.History)-*params.HistoryLength:]
	}
	return task, nil
}

// TaskCancel implements tasks/cancel.
func (d *Dispatcher) TaskCancel(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.TaskIDParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}

	task, err := d.Engine.Cancel(params.ID)
	if err != nil {
		if rpcErr, ok := err.(*errors.RpcError); ok {
			return nil, rpcErr
		}
		return nil, errors.ErrInternal.WithMessagef("%v", err)
	}

	if d.Hub != nil {
		event := a2a.TaskStatusUpdateEvent{ID: task.ID, Status: task.Status, Final: true}
		_ = d.Hub.Publish(task.ID, params.ID, event, true)
	}
	return task, nil
}

// SetPushNotification implements tasks/pushNotification/set.
func (d *Dispatcher) SetPushNotification(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.TaskPushNotificationConfig
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if ok := d.Store.SetPushNotification(params.ID, params.PushNotificationConfig); !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %q not found", params.ID)
	}
	return params, nil
}

// GetPushNotification implements tasks/pushNotification/get.
func (d *Dispatcher) GetPushNotification(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.TaskIDParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	config, ok := d.Store.GetPushNotification(params.ID)
	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("no push notification config for task %q", params.ID)
	}
	return a2a.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: config}, nil
}

// KnowledgeQuery implements knowledge/query, gating on the declared
// queryLanguage in addition to the capability bit (§4.7).
func (d *Dispatcher) KnowledgeQuery(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.KnowledgeQueryParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if !supportsQueryLanguage(d.Card, params.QueryLanguage) {
		return nil, errors.ErrKnowledgeQueryError.WithMessagef("unsupported queryLanguage %q", params.QueryLanguage)
	}

	result, err := d.KG.Query(ctx, params)
	if err != nil {
		if rpcErr, ok := err.(*errors.RpcError); ok {
			return nil, rpcErr
		}
		return nil, errors.ErrKnowledgeQueryError.WithMessagef("%v", err)
	}
	return result, nil
}

// KnowledgeUpdate implements knowledge/update, publishing each resulting
// change event to any live knowledge/subscribe streams.
func (d *Dispatcher) KnowledgeUpdate(ctx context.Context, raw any) (any, *errors.RpcError) {
	var params a2a.KnowledgeUpdateParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}

	result, _, err := d.KG.Update(ctx, params)
	if err != nil {
		if rpcErr, ok := err.(*errors.RpcError); ok {
			return nil, rpcErr
		}
		return nil, errors.ErrKnowledgeUpdateError.WithMessagef("%v", err)
	}
	return result, nil
}

func supportsQueryLanguage(card a2a.AgentCard, lang string) bool {
	if len(card.Capabilities.KnowledgeGraphQueryLanguages) == 0 {
		return lang == "graphql"
	}
	for _, l := range card.Capabilities.KnowledgeGraphQueryLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// handler returns the Task Handler the Dispatcher drives tasks/send and
// tasks/sendSubscribe with. It is a method (not a field read directly) so
// a future host can override dispatch behavior without touching the zero
// value.
func (d *Dispatcher) handler() engine.Handler {
	return echoHandler
}
