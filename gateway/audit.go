// Copyright 2025 Mercadia
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// AuditLogger persists one row per gateway decision. Rows are queued and
// written in batches so audit storage never sits on the request path.
// Without a database URL the logger degrades to a no-op.
type AuditLogger struct {
	db           *sql.DB
	queue        chan *AuditEntry
	wg           sync.WaitGroup
	shutdownChan chan struct{}
	batchSize    int
}

// AuditEntry is one audited gateway decision.
type AuditEntry struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Endpoint       string    `json:"endpoint"`
	Model          string    `json:"model"`
	Decision       string    `json:"decision"` // "allowed", "blocked", "error"
	Reason         string    `json:"reason,omitempty"`
	MessagePreview string    `json:"message_preview"`
	ToolsUsed      []string  `json:"tools_used"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	TokensUsed     int       `json:"tokens_used"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// NewAuditLogger connects to Postgres and starts the background writer.
// An empty databaseURL, or a connection failure, yields a no-op logger.
func NewAuditLogger(databaseURL string) *AuditLogger {
	l := &AuditLogger{
		queue:        make(chan *AuditEntry, 10000),
		shutdownChan: make(chan struct{}),
		batchSize:    100,
	}

	if databaseURL == "" {
		log.Printf("[AUDIT] no database configured, audit logging disabled")
		return l
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("[AUDIT] failed to open audit database: %v", err)
		return l
	}
	if err := createAuditTable(db); err != nil {
		log.Printf("[AUDIT] failed to create audit table: %v", err)
	}

	l.db = db
	l.wg.Add(1)
	go l.processQueue()

	return l
}

// newAuditLoggerWithDB wires an existing handle, used in tests.
func newAuditLoggerWithDB(db *sql.DB) *AuditLogger {
	l := &AuditLogger{
		db:           db,
		queue:        make(chan *AuditEntry, 100),
		shutdownChan: make(chan struct{}),
		batchSize:    100,
	}
	l.wg.Add(1)
	go l.processQueue()
	return l
}

// Log queues an entry. It never blocks the caller: when the queue is full
// the entry is dropped with a warning.
func (l *AuditLogger) Log(entry *AuditEntry) {
	if l.db == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	select {
	case l.queue <- entry:
	default:
		log.Printf("[AUDIT] queue full, dropping entry for session %s", entry.SessionID)
	}
}

// Shutdown flushes pending entries and stops the writer.
func (l *AuditLogger) Shutdown() {
	if l.db == nil {
		return
	}
	close(l.shutdownChan)
	l.wg.Wait()
	_ = l.db.Close()
}

func (l *AuditLogger) processQueue() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, l.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.writeBatch(batch); err != nil {
			log.Printf("[AUDIT] failed to write batch: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-l.queue:
			batch = append(batch, entry)
			if len(batch) >= l.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.shutdownChan:
			for {
				select {
				case entry := <-l.queue:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *AuditLogger) writeBatch(entries []*AuditEntry) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO gateway_audit_logs (
			id, session_id, request_id, timestamp, endpoint, model,
			decision, reason, message_preview, tools_used,
			response_time_ms, tokens_used, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, entry := range entries {
		toolsJSON, _ := json.Marshal(entry.ToolsUsed)
		if _, err := stmt.Exec(
			entry.ID,
			entry.SessionID,
			entry.RequestID,
			entry.Timestamp,
			entry.Endpoint,
			entry.Model,
			entry.Decision,
			entry.Reason,
			entry.MessagePreview,
			toolsJSON,
			entry.ResponseTimeMs,
			entry.TokensUsed,
			entry.ErrorMessage,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func createAuditTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS gateway_audit_logs (
		id VARCHAR(64) PRIMARY KEY,
		session_id VARCHAR(255) NOT NULL,
		request_id VARCHAR(64),
		timestamp TIMESTAMPTZ NOT NULL,
		endpoint VARCHAR(64) NOT NULL,
		model VARCHAR(128),
		decision VARCHAR(16) NOT NULL,
		reason VARCHAR(64),
		message_preview TEXT,
		tools_used JSONB,
		response_time_ms BIGINT,
		tokens_used INTEGER,
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_gateway_audit_session ON gateway_audit_logs(session_id);
	CREATE INDEX IF NOT EXISTS idx_gateway_audit_timestamp ON gateway_audit_logs(timestamp);
	`
	_, err := db.Exec(query)
	return err
}

// previewOf truncates message text for audit storage.
func previewOf(text string) string {
	const maxPreview = 200
	runes := []rune(text)
	if len(runes) <= maxPreview {
		return text
	}
	return string(runes[:maxPreview]) + "..."
}
