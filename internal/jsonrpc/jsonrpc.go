// Package jsonrpc defines the JSON-RPC 2.0 envelope types used on the wire.
package jsonrpc

import "encoding/json"

// Version is the protocol version stamped on every envelope.
const Version = "2.0"

// Error codes reserved by the JSON-RPC 2.0 specification.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an incoming JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool { return r.ID == nil }

// ParamsMap decodes params into a generic map. Missing or non-object params
// yield an empty map.
func (r *Request) ParamsMap() map[string]any {
	m := map[string]any{}
	if len(r.Params) > 0 {
		_ = json.Unmarshal(r.Params, &m)
	}
	return m
}

// Error is the error member of a response envelope.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is an outgoing JSON-RPC response. Result is kept pre-encoded so
// empty-object results survive serialization and error responses omit the
// member entirely.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response for id carrying result.
func NewResult(id any, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewError(id, CodeInternalError, "encode result: "+err.Error())
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}
}

// NewError builds an error response for id.
func NewError(id any, code int, message string) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}
