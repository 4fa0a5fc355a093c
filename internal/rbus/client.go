// ABOUTME: Narrow client contract for the external data-model bus
// ABOUTME: The bus itself is a collaborator; the gateway only consumes this surface

package rbus

// Client is the gateway's view of the bus. Calls are synchronous and may
// block waiting on the bus provider. Subscribe's timeout bounds the
// establishment window; any retry inside that window belongs to the bus.
type Client interface {
	GetMultiple(paths []string) ([]Property, error)
	SetSingle(path string, value *Value) error
	Subscribe(eventName string, handler EventHandler, userCtx any, timeoutSeconds int) error
	Unsubscribe(eventName string) error
}
