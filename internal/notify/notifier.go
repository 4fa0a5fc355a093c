// ABOUTME: Event notifier converting bus events into JSON-RPC notifications
// ABOUTME: Runs on the bus delivery goroutine and only enqueues, never writes

package notify

import (
	"encoding/json"

	"github.com/harper/rbus-gateway/internal/jsonrpc"
	"github.com/harper/rbus-gateway/internal/logger"
	"github.com/harper/rbus-gateway/internal/marshal"
	"github.com/harper/rbus-gateway/internal/rbus"
)

// Method is the server-initiated notification method name.
const Method = "rbus_event"

// Sink hands a finished notification frame to the connection's writer.
// Implementations must be safe to call from any goroutine and must not
// block; delivery is best-effort.
type Sink interface {
	Deliver(connID string, payload []byte)
}

// Params is the notification payload shape on the wire.
type Params struct {
	EventName string `json:"eventName"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
}

// Notifier builds self-contained notification frames from bus events and
// hands them off. It holds no subscription state.
type Notifier struct {
	sink Sink
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Bind sets the delivery sink. The subscription manager and the transport
// server depend on each other through this notifier, so the sink is bound
// once during startup, before any connection can subscribe.
func (n *Notifier) Bind(sink Sink) {
	n.sink = sink
}

// HandleEvent satisfies subscription.EventSink. The payload carries the
// marshalled "value" property of the event data, or null when absent.
func (n *Notifier) HandleEvent(event *rbus.Event, connID string) {
	if n.sink == nil {
		return
	}
	var data any
	if event.Data != nil {
		data = marshal.ToJSON(event.Data.Get("value"))
	}

	note := jsonrpc.Notification{
		JSONRPC: "2.0",
		Method:  Method,
		Params: Params{
			EventName: event.Name,
			Type:      event.Type.String(),
			Data:      data,
		},
	}

	payload, err := json.Marshal(note)
	if err != nil {
		logger.Error("failed to serialize notification for %s: %v", event.Name, err)
		return
	}
	n.sink.Deliver(connID, payload)
}
