package jsonrpc

import (
	"bytes"
	"encoding/json"

	"github.com/syedsany6/a2a-runtime/pkg/errors"
)

// ParseBody decodes a JSON-RPC HTTP body into either a single Request or a
// batch of Requests. Exactly one of the two return slices is non-nil on
// success. An empty or malformed body yields ParseError/InvalidRequest,
// matching §4.1's codec rules.
func ParseBody(body []byte) (single *Request, batch []*Request, rpcErr *errors.RpcError) {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return nil, nil, errors.ErrInvalidRequest
	}

	if body[0] == '[' {
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, nil, errors.ErrParseError
		}
		if len(batch) == 0 {
			return nil, nil, errors.ErrInvalidRequest
		}
		for _, req := range batch {
			if req.JSONRPC != "2.0" {
				return nil, nil, errors.ErrInvalidRequest
			}
		}
		return nil, batch, nil
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, errors.ErrParseError
	}
	if req.JSONRPC != "2.0" {
		return nil, nil, errors.ErrInvalidRequest
	}

	return &req, nil, nil
}

// IsNotification reports whether a request carries no id, per §4.1 ("id may
// be string, number, or null; null treated as notification").
func (r *Request) IsNotification() bool {
	return r.ID == nil
}
