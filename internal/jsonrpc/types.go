// ABOUTME: JSON-RPC 2.0 message types for the rbus gateway protocol
// ABOUTME: Implements request, response, error, and notification structures

package jsonrpc

import "encoding/json"

type Request struct {
	JSONRPC string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
	ID      *json.RawMessage `json:"id,omitempty"`
}

type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
	ID      *json.RawMessage `json:"id"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Notification is a server-initiated message; it carries no id field.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Standard JSON-RPC error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	ServerError    = -32000
)

// FallbackError is written verbatim when a response itself fails to
// serialize, so the client always receives a reply.
const FallbackError = `{"jsonrpc":"2.0","error":{"code":-32000,"message":"Response serialization failed"},"id":null}`

var nullID = json.RawMessage("null")

// normalizeID maps an absent request id to JSON null so every response
// carries an explicit id member.
func normalizeID(id *json.RawMessage) *json.RawMessage {
	if id == nil {
		return &nullID
	}
	return id
}

// NewResponse builds a success response echoing the request id. A result
// that cannot be marshalled degrades to an error response.
func NewResponse(result any, id *json.RawMessage) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewError(ServerError, "Response serialization failed", id)
	}
	return Response{JSONRPC: "2.0", Result: data, ID: normalizeID(id)}
}

// NewError builds an error response echoing the request id.
func NewError(code int, message string, id *json.RawMessage) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      normalizeID(id),
	}
}

// Encode serializes a response to a single compact frame. If encoding
// fails the fixed fallback envelope is returned instead of nothing.
func Encode(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		return []byte(FallbackError)
	}
	return data
}
