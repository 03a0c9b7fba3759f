package audit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RelayAudit is one summary row per relay fan-out, independent of the
// per-attempt delivery records.
type RelayAudit struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	EventType      string `json:"event_type"`
	Delivered      int    `json:"delivered"`
	Failed         int    `json:"failed"`
	Total          int    `json:"total"`
	CreatedAt      int64  `json:"created_at"`
}

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// LogRelay records the aggregate outcome of one fan-out. Audit write
// failures are logged and swallowed; they must never fail the relay itself.
func (l *Logger) LogRelay(orgID, eventType string, delivered, failed, total int) {
	entry := &RelayAudit{
		ID:             "audit_" + uuid.New().String(),
		OrganizationID: orgID,
		EventType:      eventType,
		Delivered:      delivered,
		Failed:         failed,
		Total:          total,
		CreatedAt:      time.Now().Unix(),
	}

	query := `
		INSERT INTO relay_audit (id, organization_id, event_type, delivered, failed, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := l.db.Exec(query, entry.ID, entry.OrganizationID, entry.EventType,
		entry.Delivered, entry.Failed, entry.Total, entry.CreatedAt); err != nil {
		log.Error().Err(err).
			Str("org_id", orgID).
			Str("event", eventType).
			Msg("failed to write relay audit entry")
	}
}

// ListByOrg returns an organization's relay summaries newest-first.
func (l *Logger) ListByOrg(orgID string, limit int) ([]*RelayAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(`
		SELECT id, organization_id, event_type, delivered, failed, total, created_at
		FROM relay_audit
		WHERE organization_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*RelayAudit
	for rows.Next() {
		var e RelayAudit
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.EventType, &e.Delivered, &e.Failed, &e.Total, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
