package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"relayd/internal/platform/models"
)

const testSchema = `
CREATE TABLE webhook_configs (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    url             TEXT NOT NULL,
    secret          TEXT NOT NULL,
    provider        TEXT NOT NULL DEFAULT 'custom',
    events          TEXT NOT NULL DEFAULT '[]',
    enabled         INTEGER NOT NULL DEFAULT 1,
    retry_count     INTEGER NOT NULL DEFAULT 3,
    headers         TEXT NOT NULL DEFAULT '{}',
    description     TEXT,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE webhook_deliveries (
    id            TEXT PRIMARY KEY,
    webhook_id    TEXT NOT NULL,
    chain_id      TEXT NOT NULL,
    event         TEXT NOT NULL,
    payload       TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    response_code INTEGER,
    response_body TEXT,
    error_message TEXT,
    attempts      INTEGER NOT NULL DEFAULT 1,
    next_retry_at INTEGER,
    delivered_at  INTEGER,
    created_at    INTEGER NOT NULL
);

CREATE TABLE relay_audit (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    event_type      TEXT NOT NULL,
    delivered       INTEGER NOT NULL DEFAULT 0,
    failed          INTEGER NOT NULL DEFAULT 0,
    total           INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL
);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A fresh :memory: database exists per connection; pin the pool to one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// instantSleep replaces the engine's backoff sleep with a recorder so retry
// tests do not wall-clock wait.
func instantSleep(e *Engine) *[]time.Duration {
	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return slept
}

func testPayload(orgID, event, secret string) *models.RelayPayload {
	body := &models.PayloadBody{
		Event:          event,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		OrganizationID: orgID,
		Data:           map[string]interface{}{"id": "task_1"},
	}
	raw, _ := json.Marshal(body)
	return &models.RelayPayload{
		Event:          body.Event,
		Timestamp:      body.Timestamp,
		OrganizationID: body.OrganizationID,
		Data:           body.Data,
		Signature:      Sign(raw, secret),
	}
}
