// ABOUTME: JSON-RPC request dispatcher for the rbus gateway methods
// ABOUTME: Validates envelopes and routes to get/set/subscribe/unsubscribe

package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/rbus-gateway/internal/jsonrpc"
	"github.com/harper/rbus-gateway/internal/logger"
	"github.com/harper/rbus-gateway/internal/marshal"
	"github.com/harper/rbus-gateway/internal/rbus"
	"github.com/harper/rbus-gateway/internal/subscription"
)

// DefaultSubscribeTimeout is the bus establishment window in seconds when
// a subscribe request carries none.
const DefaultSubscribeTimeout = 30

type Dispatcher struct {
	client rbus.Client
	subs   *subscription.Manager
}

func NewDispatcher(client rbus.Client, subs *subscription.Manager) *Dispatcher {
	return &Dispatcher{client: client, subs: subs}
}

// Handle processes one inbound frame for connID and always returns exactly
// one compact response frame. Errors are scoped to this request.
func (d *Dispatcher) Handle(raw []byte, connID string) []byte {
	var envelope struct {
		Method json.RawMessage  `json:"method"`
		Params json.RawMessage  `json:"params"`
		ID     *json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if !json.Valid(raw) {
			return jsonrpc.Encode(jsonrpc.NewError(jsonrpc.ParseError, "Parse error", nil))
		}
		// valid JSON but not an object
		return jsonrpc.Encode(jsonrpc.NewError(jsonrpc.InvalidRequest, "Invalid Request", nil))
	}

	id := envelope.ID

	var method string
	if err := json.Unmarshal(envelope.Method, &method); err != nil || method == "" {
		return jsonrpc.Encode(jsonrpc.NewError(jsonrpc.InvalidRequest, "Invalid Request", id))
	}
	if !isJSONObject(envelope.Params) {
		return jsonrpc.Encode(jsonrpc.NewError(jsonrpc.InvalidRequest, "Invalid Request", id))
	}

	var resp jsonrpc.Response
	switch method {
	case "rbus_get":
		resp = d.handleGet(envelope.Params, id)
	case "rbus_set":
		resp = d.handleSet(envelope.Params, id)
	case "rbusEvent_Subscribe":
		resp = d.handleSubscribe(envelope.Params, id, connID)
	case "rbusEvent_Unsubscribe":
		resp = d.handleUnsubscribe(envelope.Params, id, connID)
	default:
		resp = jsonrpc.NewError(jsonrpc.MethodNotFound, "Method not found", id)
	}
	return jsonrpc.Encode(resp)
}

func (d *Dispatcher) handleGet(rawParams json.RawMessage, id *json.RawMessage) jsonrpc.Response {
	var params struct {
		Path *string `json:"path"`
	}
	if err := json.Unmarshal(rawParams, &params); err != nil || params.Path == nil {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params", id)
	}

	paths := splitPaths(*params.Path)
	if len(paths) == 0 {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid or empty path", id)
	}

	props, err := d.client.GetMultiple(paths)
	if err != nil {
		return jsonrpc.NewError(jsonrpc.ServerError,
			fmt.Sprintf("rbus get failed: %v", err), id)
	}

	// Property names come back from the bus and may differ from the
	// requested paths for wildcard or partial queries.
	result := marshal.NewObject()
	for _, p := range props {
		if p.Name == "" || p.Value == nil {
			continue
		}
		result.Set(p.Name, marshal.ToJSON(p.Value))
	}
	return jsonrpc.NewResponse(result, id)
}

func (d *Dispatcher) handleSet(rawParams json.RawMessage, id *json.RawMessage) jsonrpc.Response {
	var params struct {
		Path  string          `json:"path"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(rawParams, &params); err != nil || params.Path == "" || len(params.Value) == 0 {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params", id)
	}

	value, err := marshal.FromJSON(params.Value)
	if err != nil {
		logger.Debug("rbus_set value conversion failed: %v", err)
		return jsonrpc.NewError(jsonrpc.ServerError, "Set failed", id)
	}
	if err := d.client.SetSingle(params.Path, value); err != nil {
		logger.Debug("rbus_set %s failed: %v", params.Path, err)
		return jsonrpc.NewError(jsonrpc.ServerError, "Set failed", id)
	}
	return jsonrpc.NewResponse(true, id)
}

func (d *Dispatcher) handleSubscribe(rawParams json.RawMessage, id *json.RawMessage, connID string) jsonrpc.Response {
	var params struct {
		EventName string          `json:"eventName"`
		Timeout   json.RawMessage `json:"timeout"`
	}
	if err := json.Unmarshal(rawParams, &params); err != nil || params.EventName == "" {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params: eventName required", id)
	}

	timeout := DefaultSubscribeTimeout
	if len(params.Timeout) > 0 {
		var t int
		if err := json.Unmarshal(params.Timeout, &t); err == nil {
			timeout = t
		}
	}

	if err := d.subs.Add(params.EventName, connID, timeout); err != nil {
		logger.Warn("subscribe to %s failed: %v", params.EventName, err)
		return jsonrpc.NewError(jsonrpc.ServerError, "Subscription failed", id)
	}
	return jsonrpc.NewResponse(true, id)
}

func (d *Dispatcher) handleUnsubscribe(rawParams json.RawMessage, id *json.RawMessage, connID string) jsonrpc.Response {
	var params struct {
		EventName string `json:"eventName"`
	}
	if err := json.Unmarshal(rawParams, &params); err != nil || params.EventName == "" {
		return jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params: eventName required", id)
	}

	if err := d.subs.Remove(params.EventName, connID); err != nil {
		return jsonrpc.NewError(jsonrpc.ServerError, "Unsubscription failed: not subscribed", id)
	}
	return jsonrpc.NewResponse(true, id)
}

// splitPaths splits a comma-separated path list, trimming surrounding
// spaces and dropping empty segments.
func splitPaths(path string) []string {
	parts := strings.Split(path, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isJSONObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return c == '{'
		}
	}
	return false
}
