package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// ErrBatchUnsupported is returned by DecodeRequest for array payloads.
var ErrBatchUnsupported = errors.New("batch requests are not supported")

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response represents a JSON-RPC response. Field order matches the order
// peers conventionally emit: jsonrpc, id, then result or error.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

// DecodeRequest validates data as a single JSON-RPC 2.0 request.
//
// When the envelope is structurally invalid but still carries a usable id,
// the partially decoded request is returned together with the error so the
// caller can echo that id in its error response.
func DecodeRequest(data []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, ErrBatchUnsupported
	}

	type rawRequest struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         json.RawMessage `json:"method"`
		Params         json.RawMessage `json:"params,omitempty"`
		ID             json.RawMessage `json:"id,omitempty"`
	}

	var raw rawRequest
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("invalid request object: %w", err)
	}

	req := &Request{JSONRPCVersion: raw.JSONRPCVersion, Params: raw.Params}

	if len(raw.ID) > 0 {
		var id RequestID
		if err := json.Unmarshal(raw.ID, &id); err != nil {
			return nil, err
		}
		if !id.IsNil() {
			req.ID = &id
		}
	}

	if raw.JSONRPCVersion != ProtocolVersion {
		return req, fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, raw.JSONRPCVersion)
	}

	if err := json.Unmarshal(raw.Method, &req.Method); err != nil || req.Method == "" {
		return req, errors.New("method must be a non-empty string")
	}

	if len(raw.Params) > 0 {
		switch raw.Params[0] {
		case '{', '[':
		case 'n':
			req.Params = nil
		default:
			return req, errors.New("params must be an object or array")
		}
	}

	return req, nil
}
