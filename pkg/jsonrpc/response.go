package jsonrpc

import "github.com/syedsany6/a2a-runtime/pkg/errors"

// Response is the JSON-RPC 2.0 response envelope: {jsonrpc, id, result} or
// {jsonrpc, id, error}. Result and Error are mutually exclusive on the wire.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      any              `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

func NewResult(id any, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func NewError(id any, err *errors.RpcError) Response {
	if err == nil {
		err = errors.ErrInternal
	}
	return Response{JSONRPC: "2.0", ID: id, Error: err}
}
