package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestID is a JSON-RPC request id. It keeps the exact JSON token the
// client sent so responses echo it byte for byte, including numbers too
// large or too precise for float64.
type RequestID struct {
	raw json.RawMessage
}

// String renders the id for logs: strings unquoted, numbers as sent.
func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	if id.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(id.raw, &s); err == nil {
			return s
		}
	}
	return string(id.raw)
}

// IsNil reports whether the id is absent or null.
func (id *RequestID) IsNil() bool {
	return id == nil || len(id.raw) == 0
}

// MarshalJSON implements json.Marshaler. An absent id encodes as null so
// error responses to unidentifiable requests stay well-formed.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id.IsNil() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON accepts a string, a number or null.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		id.raw = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid JSON-RPC id: %w", err)
	}
	switch v.(type) {
	case string, json.Number:
		id.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", string(data))
}
