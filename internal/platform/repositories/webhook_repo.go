package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"relayd/internal/platform/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *models.WebhookConfig) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	now := time.Now().Unix()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(webhook.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_configs (id, organization_id, name, url, secret, provider, events, enabled, retry_count, headers, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		webhook.ID, webhook.OrganizationID, webhook.Name, webhook.URL, webhook.Secret,
		webhook.Provider, string(eventsJSON), webhook.Enabled, webhook.RetryCount,
		string(headersJSON), webhook.Description, webhook.CreatedAt, webhook.UpdatedAt,
	)
	return err
}

const webhookColumns = `id, organization_id, name, url, secret, provider, events, enabled, retry_count, headers, description, created_at, updated_at`

// GetByID returns (nil, nil) when no webhook exists with the given id.
func (r *WebhookRepository) GetByID(id string) (*models.WebhookConfig, error) {
	row := r.db.QueryRow(`SELECT `+webhookColumns+` FROM webhook_configs WHERE id = ?`, id)
	webhook, err := scanWebhook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return webhook, err
}

// ListByOrg returns an organization's webhooks newest-first. A non-nil
// enabled filters by enabled state.
func (r *WebhookRepository) ListByOrg(orgID string, enabled *bool) ([]*models.WebhookConfig, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_configs WHERE organization_id = ?`
	args := []interface{}{orgID}
	if enabled != nil {
		query += ` AND enabled = ?`
		args = append(args, *enabled)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.WebhookConfig
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, webhook)
	}
	return webhooks, rows.Err()
}

// GetSubscribed returns the enabled webhooks of an organization whose event
// set contains eventType. The events column is a JSON array, so containment
// is checked application-side after narrowing by org and enabled state.
func (r *WebhookRepository) GetSubscribed(orgID, eventType string) ([]*models.WebhookConfig, error) {
	rows, err := r.db.Query(
		`SELECT `+webhookColumns+` FROM webhook_configs WHERE organization_id = ? AND enabled = ?`,
		orgID, true,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*models.WebhookConfig
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range webhook.Events {
			if e == eventType {
				matched = append(matched, webhook)
				break
			}
		}
	}
	return matched, rows.Err()
}

// Update persists every mutable field. The secret column is deliberately
// absent; it only changes through UpdateSecret.
func (r *WebhookRepository) Update(webhook *models.WebhookConfig) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(webhook.Headers)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhook_configs
		SET name = ?, url = ?, provider = ?, events = ?, enabled = ?, retry_count = ?, headers = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.Exec(query,
		webhook.Name, webhook.URL, webhook.Provider, string(eventsJSON), webhook.Enabled,
		webhook.RetryCount, string(headersJSON), webhook.Description, webhook.UpdatedAt, webhook.ID,
	)
	return err
}

func (r *WebhookRepository) UpdateSecret(id, secret string) error {
	_, err := r.db.Exec(`UPDATE webhook_configs SET secret = ?, updated_at = ? WHERE id = ?`, secret, time.Now().Unix(), id)
	return err
}

func (r *WebhookRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhook_configs WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhook(row rowScanner) (*models.WebhookConfig, error) {
	var w models.WebhookConfig
	var eventsStr, headersStr string
	var description sql.NullString

	err := row.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.URL, &w.Secret, &w.Provider,
		&eventsStr, &w.Enabled, &w.RetryCount, &headersStr, &description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		w.Description = description.String
	}
	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(headersStr), &w.Headers); err != nil {
		return nil, err
	}
	return &w, nil
}
