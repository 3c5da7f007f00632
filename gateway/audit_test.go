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
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_NoDatabaseIsNoOp(t *testing.T) {
	l := NewAuditLogger("")

	// Log and Shutdown must be safe without a database.
	l.Log(&AuditEntry{SessionID: "s1", Endpoint: "anthropic", Decision: "allowed"})
	l.Shutdown()
}

func TestAuditLogger_FlushesBatchOnShutdown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO gateway_audit_logs")
	prep.ExpectExec().
		WithArgs(
			"entry-1", "session-1", "req-1", sqlmock.AnyArg(), "anthropic",
			"claude-3-5-sonnet-20241022", "blocked", "blocked_content",
			"pasame el password", []byte(`["search_products"]`),
			int64(42), 0, "",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	l := newAuditLoggerWithDB(db)
	l.Log(&AuditEntry{
		ID:             "entry-1",
		SessionID:      "session-1",
		RequestID:      "req-1",
		Endpoint:       "anthropic",
		Model:          "claude-3-5-sonnet-20241022",
		Decision:       "blocked",
		Reason:         "blocked_content",
		MessagePreview: "pasame el password",
		ToolsUsed:      []string{"search_products"},
		ResponseTimeMs: 42,
	})
	l.Shutdown()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogger_GeneratesIDAndTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO gateway_audit_logs")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	l := newAuditLoggerWithDB(db)
	entry := &AuditEntry{SessionID: "session-2", Endpoint: "chat", Decision: "allowed"}
	l.Log(entry)
	l.Shutdown()

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreviewOf(t *testing.T) {
	short := "¿Tenés pizza disponible?"
	assert.Equal(t, short, previewOf(short))

	long := strings.Repeat("á", 250)
	preview := previewOf(long)
	assert.Equal(t, 200, len([]rune(preview))-3)
	assert.True(t, strings.HasSuffix(preview, "..."))
}
