// ABOUTME: Bus event model and the handler signature for push delivery
// ABOUTME: Handlers run on a bus-owned goroutine, not the connection's

package rbus

type EventType int

const (
	EventValueChanged EventType = iota
	EventObjectCreated
	EventObjectDeleted
	EventGeneral
	EventInitialValue
	EventInterval
	EventDurationComplete
	EventUnknown
)

// String returns the wire name used in rbus_event notifications.
func (t EventType) String() string {
	switch t {
	case EventValueChanged:
		return "value_changed"
	case EventObjectCreated:
		return "object_created"
	case EventObjectDeleted:
		return "object_deleted"
	case EventGeneral:
		return "general"
	case EventInitialValue:
		return "initial_value"
	case EventInterval:
		return "interval"
	case EventDurationComplete:
		return "duration_complete"
	default:
		return "unknown"
	}
}

// Event is one delivery for a subscribed event name. Data, when present,
// is an object value whose "value" property carries the payload.
type Event struct {
	Name string
	Type EventType
	Data *Value
}

// EventHandler receives events on an unspecified goroutine together with
// the userCtx passed at subscribe time.
type EventHandler func(event *Event, userCtx any)
