// ABOUTME: In-memory fake bus client for tests
// ABOUTME: Scriptable errors, a settable property store, and manual event firing

package rbus

import (
	"fmt"
	"sync"
)

type fakeSub struct {
	handler EventHandler
	userCtx any
}

// Fake implements Client against an in-memory property store. Tests can
// preload values, script errors for each operation, and fire events at
// registered handlers from any goroutine.
type Fake struct {
	mu    sync.Mutex
	store map[string]*Value
	subs  map[string][]fakeSub

	GetErr         error
	SetErr         error
	SubscribeErr   error
	UnsubscribeErr error

	SubscribeCalls   int
	UnsubscribeCalls int
	LastTimeout      int
}

func NewFake() *Fake {
	return &Fake{
		store: make(map[string]*Value),
		subs:  make(map[string][]fakeSub),
	}
}

// Load preloads a property value.
func (f *Fake) Load(path string, v *Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[path] = v
}

// Stored returns the current value for a path, or nil.
func (f *Fake) Stored(path string) *Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[path]
}

func (f *Fake) GetMultiple(paths []string) ([]Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	props := make([]Property, 0, len(paths))
	for _, p := range paths {
		v, ok := f.store[p]
		if !ok {
			return nil, fmt.Errorf("no such element: %s", p)
		}
		props = append(props, Property{Name: p, Value: v})
	}
	return props, nil
}

func (f *Fake) SetSingle(path string, value *Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.store[path] = value
	return nil
}

func (f *Fake) Subscribe(eventName string, handler EventHandler, userCtx any, timeoutSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubscribeCalls++
	f.LastTimeout = timeoutSeconds
	if f.SubscribeErr != nil {
		return f.SubscribeErr
	}
	f.subs[eventName] = append(f.subs[eventName], fakeSub{handler: handler, userCtx: userCtx})
	return nil
}

func (f *Fake) Unsubscribe(eventName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UnsubscribeCalls++
	if f.UnsubscribeErr != nil {
		return f.UnsubscribeErr
	}
	if len(f.subs[eventName]) > 0 {
		f.subs[eventName] = f.subs[eventName][1:]
	}
	return nil
}

// Fire delivers an event synchronously on the caller's goroutine, which
// from the gateway's point of view is a foreign bus delivery context.
func (f *Fake) Fire(eventName string, typ EventType, data *Value) {
	f.mu.Lock()
	subs := append([]fakeSub(nil), f.subs[eventName]...)
	f.mu.Unlock()
	ev := &Event{Name: eventName, Type: typ, Data: data}
	for _, s := range subs {
		s.handler(ev, s.userCtx)
	}
}
