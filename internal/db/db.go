// ABOUTME: Database package for logging gateway wire traffic to SQLite
// ABOUTME: Provides message logging, connection tracking, and query capabilities

package db

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harper/rbus-gateway/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	conn *sql.DB
}

type MessageDirection string

const (
	DirectionInbound      MessageDirection = "inbound"
	DirectionOutbound     MessageDirection = "outbound"
	DirectionNotification MessageDirection = "notification"
)

// Open opens or creates the SQLite database
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Create tables
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("database initialized at %s", dbPath)
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// CreateConnection records a new transport session
func (db *DB) CreateConnection(connID, remoteAddr string) error {
	_, err := db.conn.Exec(
		"INSERT INTO connections (id, remote_addr) VALUES (?, ?)",
		connID, remoteAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// CloseConnection marks a transport session as closed
func (db *DB) CloseConnection(connID string) error {
	_, err := db.conn.Exec(
		"UPDATE connections SET closed_at = CURRENT_TIMESTAMP WHERE id = ?",
		connID,
	)
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// LogMessage logs a wire frame with direction and parsed details
func (db *DB) LogMessage(connID string, direction MessageDirection, rawMessage []byte) error {
	var msg map[string]any
	var messageType, method string

	if err := json.Unmarshal(rawMessage, &msg); err == nil {
		if _, hasMethod := msg["method"]; hasMethod {
			if _, hasID := msg["id"]; hasID {
				messageType = "request"
			} else {
				messageType = "notification"
			}
			if m, ok := msg["method"].(string); ok {
				method = m
			}
		} else if _, hasResult := msg["result"]; hasResult {
			messageType = "response"
		} else if _, hasError := msg["error"]; hasError {
			messageType = "response"
		}
	}

	_, err := db.conn.Exec(
		`INSERT INTO messages (connection_id, direction, message_type, method, raw_message)
		 VALUES (?, ?, ?, ?, ?)`,
		connID, direction, messageType, method, string(rawMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

// GetConnectionMessages retrieves all logged frames for a connection
func (db *DB) GetConnectionMessages(connID string) ([]Message, error) {
	rows, err := db.conn.Query(
		`SELECT id, connection_id, direction, message_type, method, raw_message, timestamp
		 FROM messages WHERE connection_id = ? ORDER BY timestamp ASC, id ASC`,
		connID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var method sql.NullString
		var messageType sql.NullString

		err := rows.Scan(&m.ID, &m.ConnectionID, &m.Direction, &messageType, &method, &m.RawMessage, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if method.Valid {
			m.Method = method.String
		}
		if messageType.Valid {
			m.MessageType = messageType.String
		}

		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// Message represents a logged wire frame
type Message struct {
	ID           int64
	ConnectionID string
	Direction    MessageDirection
	MessageType  string
	Method       string
	RawMessage   string
	Timestamp    time.Time
}
