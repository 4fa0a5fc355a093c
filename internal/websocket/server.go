// ABOUTME: WebSocket server carrying JSON-RPC frames for the rbus gateway
// ABOUTME: One reader and one writer goroutine per connection; writer owns the socket

package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harper/rbus-gateway/internal/db"
	"github.com/harper/rbus-gateway/internal/dispatch"
	"github.com/harper/rbus-gateway/internal/logger"
	"github.com/harper/rbus-gateway/internal/subscription"
)

// outboundBuffer bounds per-connection pending frames. Notifications that
// arrive while the buffer is full are dropped (best-effort push).
const outboundBuffer = 64

// writeTimeout bounds a single frame write. A client that stops reading
// trips the deadline and the connection is torn down instead of pinning
// the writer goroutine. A var so tests can shorten it.
var writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Add proper origin checking
	},
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	subs       *subscription.Manager
	db         *db.DB

	mu    sync.RWMutex
	conns map[string]*conn
}

type conn struct {
	id         string
	ws         *websocket.Conn
	outbound   chan []byte
	closed     chan struct{}
	writerDone chan struct{}
}

func NewServer(dispatcher *dispatch.Dispatcher, subs *subscription.Manager, database *db.DB) *Server {
	return &Server{
		dispatcher: dispatcher,
		subs:       subs,
		db:         database,
		conns:      make(map[string]*conn),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed: %v", err)
		return
	}
	s.handleConnection(ws)
}

// ConnectionCount reports live transport sessions.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Deliver satisfies notify.Sink. It runs on the bus delivery goroutine,
// so it must never block and never touch the socket directly: it only
// enqueues onto the owning connection's writer.
func (s *Server) Deliver(connID string, payload []byte) {
	s.mu.RLock()
	c, ok := s.conns[connID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.outbound <- payload:
		s.logMessage(connID, db.DirectionNotification, payload)
	case <-c.closed:
	default:
		logger.Debug("[%s] dropping notification, outbound queue full", shortID(connID))
	}
}

func (s *Server) handleConnection(ws *websocket.Conn) {
	defer ws.Close()

	c := &conn{
		id:         uuid.New().String(),
		ws:         ws,
		outbound:   make(chan []byte, outboundBuffer),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	s.mu.Lock()
	s.conns[c.id] = c
	total := len(s.conns)
	s.mu.Unlock()

	logger.Info("[%s] client connected (%d total)", shortID(c.id), total)
	if s.db != nil {
		if err := s.db.CreateConnection(c.id, ws.RemoteAddr().String()); err != nil {
			logger.Warn("[%s] failed to record connection: %v", shortID(c.id), err)
		}
	}

	// Writer goroutine: sole caller of WriteMessage for this connection.
	// Responses and notifications share one FIFO queue, preserving
	// per-connection notification ordering.
	go func() {
		defer close(c.writerDone)
		for {
			select {
			case msg := <-c.outbound:
				c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
					logger.Debug("[%s] websocket write error: %v", shortID(c.id), err)
					// Unblock the read loop so teardown runs.
					c.ws.Close()
					return
				}
			case <-c.closed:
				return
			}
		}
	}()

	// Read loop. A slow bus call blocks only this connection's reads.
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			logger.Debug("[%s] websocket read error: %v", shortID(c.id), err)
			break
		}

		s.logMessage(c.id, db.DirectionInbound, message)
		resp := s.dispatcher.Handle(message, c.id)
		s.logMessage(c.id, db.DirectionOutbound, resp)

		select {
		case c.outbound <- resp:
		case <-c.writerDone:
		}
	}

	// Tear down subscriptions synchronously before the id is discarded.
	s.subs.RemoveAllFor(c.id)

	s.mu.Lock()
	delete(s.conns, c.id)
	total = len(s.conns)
	s.mu.Unlock()
	close(c.closed)

	logger.Info("[%s] client disconnected (%d remaining)", shortID(c.id), total)
	if s.db != nil {
		if err := s.db.CloseConnection(c.id); err != nil {
			logger.Warn("[%s] failed to record disconnect: %v", shortID(c.id), err)
		}
	}
}

func (s *Server) logMessage(connID string, direction db.MessageDirection, payload []byte) {
	if s.db == nil {
		return
	}
	if err := s.db.LogMessage(connID, direction, payload); err != nil {
		logger.Warn("[%s] failed to log %s message: %v", shortID(connID), direction, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
