// ABOUTME: Subscription manager mapping (eventName, connection) to bus subscriptions
// ABOUTME: Enforces idempotent add, a capacity bound, and leak-free cleanup

package subscription

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harper/rbus-gateway/internal/logger"
	"github.com/harper/rbus-gateway/internal/rbus"
)

// DefaultLimit matches the reference gateway's subscription bound.
const DefaultLimit = 100

var (
	ErrCapacityExceeded  = errors.New("subscription capacity exceeded")
	ErrSubscribeFailed   = errors.New("subscribe failed")
	ErrNotFound          = errors.New("not subscribed")
	ErrUnsubscribeFailed = errors.New("unsubscribe failed")
)

// EventSink receives bus events already attributed to the owning
// connection. Implementations must not call back into the Manager.
type EventSink interface {
	HandleEvent(event *rbus.Event, connID string)
}

type key struct {
	event string
	conn  string
}

// Record identifies one live subscription, for the management API.
type Record struct {
	EventName    string `json:"eventName"`
	ConnectionID string `json:"connectionId"`
}

// Manager owns every live subscription. The table is guarded by a mutex
// because each connection runs its own handler goroutine; bus delivery
// goroutines never touch the table, they only flow through the sink.
type Manager struct {
	client rbus.Client
	sink   EventSink
	limit  int

	mu    sync.Mutex
	table map[key]struct{}
}

func NewManager(client rbus.Client, sink EventSink, limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{
		client: client,
		sink:   sink,
		limit:  limit,
		table:  make(map[key]struct{}),
	}
}

// Add subscribes connID to eventName. A duplicate add succeeds without
// contacting the bus. The bus owns any retry inside timeoutSeconds; on
// bus failure no record is kept.
func (m *Manager) Add(eventName, connID string, timeoutSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{event: eventName, conn: connID}
	if _, ok := m.table[k]; ok {
		return nil
	}
	if len(m.table) >= m.limit {
		return fmt.Errorf("%w: limit %d reached", ErrCapacityExceeded, m.limit)
	}

	if err := m.client.Subscribe(eventName, m.handleEvent, connID, timeoutSeconds); err != nil {
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}

	m.table[k] = struct{}{}
	logger.Debug("subscribed %s for connection %s (%d live)", eventName, connID, len(m.table))
	return nil
}

// Remove unsubscribes the exact (eventName, connID) pair. The local
// record is dropped even when the bus unsubscribe fails; the failure is
// still reported to the caller. This asymmetry is deliberate and matches
// the reference gateway.
func (m *Manager) Remove(eventName, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{event: eventName, conn: connID}
	if _, ok := m.table[k]; !ok {
		return ErrNotFound
	}
	delete(m.table, k)

	if err := m.client.Unsubscribe(eventName); err != nil {
		logger.Warn("bus unsubscribe for %s failed: %v", eventName, err)
		return fmt.Errorf("%w: %v", ErrUnsubscribeFailed, err)
	}
	return nil
}

// RemoveAllFor tears down every subscription owned by connID. Individual
// bus failures are discarded so cleanup never aborts partway.
func (m *Manager) RemoveAllFor(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.table {
		if k.conn != connID {
			continue
		}
		delete(m.table, k)
		if err := m.client.Unsubscribe(k.event); err != nil {
			logger.Debug("cleanup unsubscribe for %s failed: %v", k.event, err)
		}
	}
}

// Close unsubscribes everything, for process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.table {
		delete(m.table, k)
		if err := m.client.Unsubscribe(k.event); err != nil {
			logger.Debug("shutdown unsubscribe for %s failed: %v", k.event, err)
		}
	}
}

// Len reports the number of live subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}

// Snapshot returns the live subscriptions in a stable order.
func (m *Manager) Snapshot() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := make([]Record, 0, len(m.table))
	for k := range m.table {
		recs = append(recs, Record{EventName: k.event, ConnectionID: k.conn})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].EventName != recs[j].EventName {
			return recs[i].EventName < recs[j].EventName
		}
		return recs[i].ConnectionID < recs[j].ConnectionID
	})
	return recs
}

// handleEvent runs on the bus delivery goroutine. It only attributes the
// event to its connection and forwards it; the table is never touched
// from here.
func (m *Manager) handleEvent(event *rbus.Event, userCtx any) {
	connID, ok := userCtx.(string)
	if !ok || connID == "" {
		return
	}
	m.sink.HandleEvent(event, connID)
}
