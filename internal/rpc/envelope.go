package rpc

import (
	"encoding/json"
)

// Version is the only JSON-RPC version the router speaks.
const Version = "2.0"

// Request is an incoming JSON-RPC envelope. ID and Params stay raw so the
// ID can be echoed back byte-for-byte and params can be decoded per
// method.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC envelope. Exactly one of Result or
// Error is set. ID is always serialized, as null when the request carried
// none.
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id"`
	Result  any          `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject is the error member of a response. Details carries the
// human-readable remedy for authentication failures.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Details string `json:"details,omitempty"`
}

// newResult builds a success response echoing the request ID.
func newResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: echoID(id), Result: result}
}

// newError builds an error response echoing the request ID.
func newError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      echoID(id),
		Error:   &ErrorObject{Code: code, Message: message},
	}
}

// echoID preserves the request's ID bytes, degrading to null when the
// request had no usable ID.
func echoID(id json.RawMessage) any {
	if len(id) == 0 {
		return nil
	}
	return id
}
