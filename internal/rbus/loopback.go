// ABOUTME: In-memory loopback bus for deployments without a native rbus transport
// ABOUTME: Serves get/set from a local store and raises value_changed on set

package rbus

import (
	"fmt"
	"sync"
)

// Loopback is a self-contained bus provider. Sets are observable: a set
// on a path raises a value_changed event to every subscriber of that
// path, delivered asynchronously on a separate goroutine the way a real
// bus transport would.
type Loopback struct {
	mu    sync.Mutex
	store map[string]*Value
	subs  map[string][]fakeSub
}

// Open connects to the data-model bus. Without a native transport the
// gateway runs against the in-memory loopback provider.
func Open(component string) (Client, error) {
	if component == "" {
		return nil, fmt.Errorf("component name required")
	}
	return &Loopback{
		store: make(map[string]*Value),
		subs:  make(map[string][]fakeSub),
	}, nil
}

func (l *Loopback) GetMultiple(paths []string) ([]Property, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	props := make([]Property, 0, len(paths))
	for _, p := range paths {
		v, ok := l.store[p]
		if !ok {
			return nil, fmt.Errorf("no such element: %s", p)
		}
		props = append(props, Property{Name: p, Value: v})
	}
	return props, nil
}

func (l *Loopback) SetSingle(path string, value *Value) error {
	l.mu.Lock()
	l.store[path] = value
	subs := append([]fakeSub(nil), l.subs[path]...)
	l.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}
	ev := &Event{
		Name: path,
		Type: EventValueChanged,
		Data: NewObject(Property{Name: "value", Value: value}),
	}
	go func() {
		for _, s := range subs {
			s.handler(ev, s.userCtx)
		}
	}()
	return nil
}

func (l *Loopback) Subscribe(eventName string, handler EventHandler, userCtx any, timeoutSeconds int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[eventName] = append(l.subs[eventName], fakeSub{handler: handler, userCtx: userCtx})
	return nil
}

func (l *Loopback) Unsubscribe(eventName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.subs[eventName]) == 0 {
		return fmt.Errorf("no subscription for %s", eventName)
	}
	l.subs[eventName] = l.subs[eventName][1:]
	return nil
}
