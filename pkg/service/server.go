package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/auth"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
	"github.com/syedsany6/a2a-runtime/pkg/hub"
	"github.com/syedsany6/a2a-runtime/pkg/jsonrpc"
)

// Server is the HTTP surface over a Dispatcher: one JSON-RPC endpoint that
// upgrades to SSE for the three streaming methods, plus the Agent Card
// Publisher (§4.8), a health check, and a /metrics endpoint.
type Server struct {
	d    *Dispatcher
	m    *metrics
	auth *auth.Service
}

// NewServer wraps d for HTTP serving, registering its metrics against the
// default Prometheus registry (so they're scraped alongside the process's
// standard collectors at /metrics).
func NewServer(d *Dispatcher) *Server {
	return &Server{d: d, m: newMetrics(prometheus.DefaultRegisterer)}
}

// WithAuth enables bearer-token authentication on /rpc, delegating to
// auth.Service.AuthenticateRequest. The card and health endpoints stay
// open, matching the teacher's "discovery is always public" posture.
func (s *Server) WithAuth(svc *auth.Service) *Server {
	s.auth = svc
	return s
}

// Mux returns a ready-to-mount *http.ServeMux. Callers embedding this
// runtime in a larger application may instead call the handler methods
// directly against their own router. /rpc is wrapped with an OpenTelemetry
// span per request, matching the teacher's preference for instrumented
// outer handlers over ad-hoc logging at each call site.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/rpc", otelhttp.NewHandler(http.HandlerFunc(s.handleRPCAuthenticated), "a2a.rpc"))
	mux.HandleFunc("/.well-known/agent.json", s.HandleCard)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// HandleCard serves the Agent Card Publisher (C8), unconditionally on GET
// per §4.8/§6.
func (s *Server) HandleCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.d.Card); err != nil {
		log.Error("service: failed to encode agent card", "error", err)
	}
}

// HandleHealth is a liveness probe; it carries no protocol meaning.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRPCAuthenticated(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		if err := s.auth.AuthenticateRequest(r); err != nil {
			writeRPCError(w, nil, errors.ErrInvalidRequest.WithMessagef("authentication failed: %v", err))
			return
		}
	}
	s.HandleRPC(w, r)
}

// HandleRPC is the dispatch entrypoint (§4.1/§4.7): parse body, gate and
// route non-streaming methods to one JSON response, and upgrade streaming
// methods to an SSE connection instead.
func (s *Server) HandleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, nil, errors.ErrParseError)
		return
	}

	single, batch, rpcErr := jsonrpc.ParseBody(body)
	if rpcErr != nil {
		writeRPCError(w, nil, rpcErr)
		return
	}

	if batch != nil {
		responses := make([]jsonrpc.Response, 0, len(batch))
		for _, req := range batch {
			if isStreamingMethod(req.Method) {
				responses = append(responses, jsonrpc.NewError(req.ID,
					errors.ErrInvalidRequest.WithMessagef("%s cannot be used inside a batch request", req.Method)))
				continue
			}
			if req.IsNotification() {
				s.dispatchOne(r.Context(), req)
				continue
			}
			responses = append(responses, s.dispatchOne(r.Context(), req))
		}
		if len(responses) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, responses)
		return
	}

	req := single
	if isStreamingMethod(req.Method) {
		s.serveStream(w, r, req)
		return
	}

	if req.IsNotification() {
		s.dispatchOne(r.Context(), req)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := s.dispatchOne(r.Context(), req)
	status := http.StatusOK
	if resp.Error != nil {
		status = errors.HTTPStatus(resp.Error.Code)
	}
	writeJSON(w, status, resp)
}

func (s *Server) dispatchOne(ctx context.Context, req *jsonrpc.Request) jsonrpc.Response {
	start := time.Now()
	handler, rpcErr := s.lookup(req.Method)
	if rpcErr != nil {
		s.m.observe(req.Method, start, true)
		return jsonrpc.NewError(req.ID, rpcErr)
	}

	result, rpcErr := handler(ctx, req.Params)
	s.m.observe(req.Method, start, rpcErr != nil)
	if rpcErr != nil {
		return jsonrpc.NewError(req.ID, rpcErr)
	}
	return jsonrpc.NewResult(req.ID, result)
}

// lookup resolves a non-streaming method name to its handler, applying
// the §4.7 capability gate.
func (s *Server) lookup(method string) (func(context.Context, any) (any, *errors.RpcError), *errors.RpcError) {
	d := s.d
	caps := d.Card.Capabilities

	switch method {
	case "tasks/send":
		return d.TaskSend, nil
	case "tasks/get":
		return d.TaskGet, nil
	case "tasks/cancel":
		return d.TaskCancel, nil
	case "tasks/pushNotification/set":
		if err := gate(caps.PushNotifications, true); err != nil {
			return nil, err
		}
		return d.SetPushNotification, nil
	case "tasks/pushNotification/get":
		if err := gate(caps.PushNotifications, true); err != nil {
			return nil, err
		}
		return d.GetPushNotification, nil
	case "knowledge/query":
		if err := gate(caps.KnowledgeGraph, d.KG != nil); err != nil {
			return nil, err
		}
		return d.KnowledgeQuery, nil
	case "knowledge/update":
		if err := gate(caps.KnowledgeGraph, d.KG != nil); err != nil {
			return nil, err
		}
		return d.KnowledgeUpdate, nil
	default:
		return nil, errors.ErrMethodNotFound
	}
}

func isStreamingMethod(method string) bool {
	switch method {
	case "tasks/sendSubscribe", "tasks/resubscribe", "knowledge/subscribe":
		return true
	}
	return false
}

// serveStream handles the three methods whose response IS the SSE
// connection rather than a single JSON-RPC envelope.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	d := s.d
	caps := d.Card.Capabilities

	switch req.Method {
	case "tasks/sendSubscribe":
		if err := gate(caps.Streaming, true); err != nil {
			writeRPCError(w, req.ID, err)
			return
		}
		var params a2a.TaskSendParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			writeRPCError(w, req.ID, rpcErr)
			return
		}
		for i := range params.Message.Parts {
			if err := params.Message.Parts[i].Validate(); err != nil {
				writeRPCError(w, req.ID, errors.ErrInvalidParams.WithMessagef("message part %d: %v", i, err))
				return
			}
		}

		emitter := hubEmitter{hub: d.Hub, taskID: params.ID, requestID: req.ID}
		go func() {
			if _, err := d.Engine.Send(context.Background(), params, d.handler(), emitter); err != nil {
				log.Error("service: tasks/sendSubscribe handler failed", "taskId", params.ID, "error", err)
			}
		}()

		s.m.subscriberOpened()
		defer s.m.subscriberClosed()
		d.Hub.Subscribe(w, r, params.ID)

	case "tasks/resubscribe":
		if err := gate(caps.Streaming, true); err != nil {
			writeRPCError(w, req.ID, err)
			return
		}
		var params a2a.TaskQueryParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			writeRPCError(w, req.ID, rpcErr)
			return
		}
		if _, ok := d.Store.Load(params.ID); !ok {
			writeRPCError(w, req.ID, errors.ErrTaskNotFound.WithMessagef("task %q not found", params.ID))
			return
		}
		s.m.subscriberOpened()
		defer s.m.subscriberClosed()
		d.Hub.Subscribe(w, r, params.ID)

	case "knowledge/subscribe":
		if err := gate(caps.KnowledgeGraph && caps.Streaming, d.KG != nil); err != nil {
			writeRPCError(w, req.ID, err)
			return
		}
		var params a2a.KnowledgeSubscribeParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			writeRPCError(w, req.ID, rpcErr)
			return
		}

		sub, err := d.KG.Subscribe(params)
		if err != nil {
			if rpcErr, ok := err.(*errors.RpcError); ok {
				writeRPCError(w, req.ID, rpcErr)
			} else {
				writeRPCError(w, req.ID, errors.ErrKnowledgeSubscriptionError.WithMessagef("%v", err))
			}
			return
		}
		defer d.KG.Unsubscribe(sub)

		kgSub := hub.NewKGSubscription()
		go func() {
			for ev := range sub.Events {
				kgSub.Enqueue(req.ID, ev)
			}
			kgSub.Close()
		}()
		s.m.subscriberOpened()
		defer s.m.subscriberClosed()
		kgSub.Serve(w, r)

	default:
		writeRPCError(w, req.ID, errors.ErrMethodNotFound)
	}
}

// hubEmitter binds a *hub.Hub to one Task id and originating JSON-RPC
// request id, satisfying engine.Emitter without pkg/engine ever importing
// pkg/hub.
type hubEmitter struct {
	hub       *hub.Hub
	taskID    string
	requestID any
}

func (e hubEmitter) Publish(event any, final bool) error {
	return e.hub.Publish(e.taskID, e.requestID, event, final)
}

func writeRPCError(w http.ResponseWriter, id any, rpcErr *errors.RpcError) {
	writeJSON(w, errors.HTTPStatus(rpcErr.Code), jsonrpc.NewError(id, rpcErr))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
