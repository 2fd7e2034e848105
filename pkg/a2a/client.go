package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
	"github.com/syedsany6/a2a-runtime/pkg/jsonrpc"
)

// SendTaskResponse represents a response to a send task request
type SendTaskResponse struct {
	jsonrpc.Response
	Result *Task            `json:"result,omitempty"`
	Error  *errors.RpcError `json:"error,omitempty"`
}

// SendTaskStreamingResponse represents one line of a tasks/sendSubscribe or
// tasks/resubscribe stream: either a TaskStatusUpdateEvent or a
// TaskArtifactUpdateEvent, per §4.5.
type SendTaskStreamingResponse struct {
	jsonrpc.Response
	Result any              `json:"result,omitempty"`
	Error  *errors.RpcError `json:"error,omitempty"`
}

// GetTaskResponse represents a response to a get task request
type GetTaskResponse struct {
	jsonrpc.Response
	Result *Task            `json:"result,omitempty"`
	Error  *errors.RpcError `json:"error,omitempty"`
}

// CancelTaskResponse represents a response to a cancel task request
type CancelTaskResponse struct {
	jsonrpc.Response
	Result *Task            `json:"result,omitempty"`
	Error  *errors.RpcError `json:"error,omitempty"`
}

// GetTaskHistoryResponse represents a response to a get task history request
type GetTaskHistoryResponse struct {
	jsonrpc.Response
	Result *TaskHistory     `json:"result,omitempty"`
	Error  *errors.RpcError `json:"error,omitempty"`
}

// SetTaskPushNotificationResponse represents a response to a set task push notification request
type SetTaskPushNotificationResponse struct {
	jsonrpc.Response
	Result *PushNotificationConfig `json:"result,omitempty"`
	Error  *errors.RpcError        `json:"error,omitempty"`
}

// GetTaskPushNotificationResponse represents a response to a get task push notification request
type GetTaskPushNotificationResponse struct {
	jsonrpc.Response
	Result *PushNotificationConfig `json:"result,omitempty"`
	Error  *errors.RpcError        `json:"error,omitempty"`
}

// Client is an A2A protocol client.
type Client struct {
	baseURL string
	conn    *fiberClient.Client
}

// NewClient creates a new A2A client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		conn:    fiberClient.New().SetBaseURL(baseURL),
	}
}

// doRequest sends a JSON-RPC request and returns the decoded response envelope.
func (client *Client) doRequest(req jsonrpc.Request) (jsonrpc.Response, error) {
	res, err := client.conn.Post(
		"/rpc",
		fiberClient.Config{
			Header: map[string]string{
				"Content-Type": "application/json",
			},
			Body: req,
		},
	)

	if err != nil {
		return jsonrpc.Response{}, err
	}

	fm := fiber.Map{}
	res.JSON(&fm)

	var rpcErr *errors.RpcError
	if errMap, ok := fm["error"].(map[string]interface{}); ok {
		rpcErr = &errors.RpcError{
			Code:    int(errMap["code"].(float64)),
			Message: errMap["message"].(string),
		}
	}

	return jsonrpc.Response{
		JSONRPC: "2.0",
		Result:  fm["result"],
		Error:   rpcErr,
	}, nil
}

// SendTask sends a task message to the agent.
func (client *Client) SendTask(params TaskSendParams) (jsonrpc.Response, error) {
	buf, err := json.Marshal(params)

	if err != nil {
		log.Error("failed to marshal task send params", "error", err)
		return jsonrpc.Response{}, err
	}

	req := jsonrpc.Request{
		Message: jsonrpc.Message{JSONRPC: "2.0"},
		Method:  "tasks/send",
		Params:  json.RawMessage(buf),
	}

	return client.doRequest(req)
}

// GetTask retrieves the status of a task.
func (client *Client) GetTask(params TaskQueryParams) (jsonrpc.Response, error) {
	req := jsonrpc.Request{
		Message: jsonrpc.Message{JSONRPC: "2.0"},
		Method:  "tasks/get",
		Params:  params,
	}

	return client.doRequest(req)
}

// CancelTask cancels a task.
func (client *Client) CancelTask(params TaskIDParams) (jsonrpc.Response, error) {
	req := jsonrpc.Request{
		Message: jsonrpc.Message{JSONRPC: "2.0"},
		Method:  "tasks/cancel",
		Params:  params,
	}

	return client.doRequest(req)
}

// SendTaskStreaming sends a task message and streams the resulting events.
func (client *Client) SendTaskStreaming(
	params TaskSendParams, eventChan chan<- any,
) error {
	req := jsonrpc.Request{
		Message: jsonrpc.Message{JSONRPC: "2.0"},
		Method:  "tasks/sendSubscribe",
		Params:  params,
	}

	res, err := client.conn.Post(
		"/rpc",
		fiberClient.Config{
			Header: map[string]string{
				"Content-Type": "application/json",
				"Accept":       "text/event-stream",
			},
			Body: req,
		},
	)

	if err != nil {
		return err
	}

	// Strip SSE framing ("data:" prefixes, ": heartbeat" comments, blank
	// separator lines) so the decoder sees a plain sequence of JSON values.
	var payload bytes.Buffer
	for _, line := range bytes.Split(res.Body(), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		payload.Write(bytes.TrimPrefix(line, []byte("data:")))
		payload.WriteByte('\n')
	}
	reader := bytes.NewReader(payload.Bytes())
	decoder := json.NewDecoder(reader)
	ctx := context.Background()

	for {
		var event SendTaskStreamingResponse
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode event: %w", err)
		}

		if event.Error != nil {
			return fmt.Errorf("A2A error: %s (code: %d)", event.Error.Message, event.Error.Code)
		}

		select {
		case eventChan <- event.Result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
