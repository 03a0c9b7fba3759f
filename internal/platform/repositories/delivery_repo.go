package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"relayd/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(delivery *models.RelayDelivery) error {
	if delivery.ID == "" {
		delivery.ID = "del_" + uuid.New().String()
	}
	if delivery.CreatedAt == 0 {
		delivery.CreatedAt = time.Now().Unix()
	}

	payloadJSON, err := json.Marshal(delivery.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, chain_id, event, payload, status, response_code, response_body, error_message, attempts, next_retry_at, delivered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		delivery.ID, delivery.WebhookID, delivery.ChainID, delivery.Event, string(payloadJSON),
		delivery.Status, nullableInt(delivery.ResponseCode), delivery.ResponseBody,
		delivery.ErrorMessage, delivery.Attempts, delivery.NextRetryAt, delivery.DeliveredAt,
		delivery.CreatedAt,
	)
	return err
}

func (r *DeliveryRepository) MarkSuccess(id string, responseCode int, responseBody string, deliveredAt int64) error {
	_, err := r.db.Exec(`
		UPDATE webhook_deliveries
		SET status = ?, response_code = ?, response_body = ?, error_message = NULL, next_retry_at = NULL, delivered_at = ?
		WHERE id = ?
	`, models.DeliveryStatusSuccess, responseCode, responseBody, deliveredAt, id)
	return err
}

func (r *DeliveryRepository) MarkFailure(id, status string, responseCode int, responseBody, errorMessage string, nextRetryAt *int64) error {
	_, err := r.db.Exec(`
		UPDATE webhook_deliveries
		SET status = ?, response_code = ?, response_body = ?, error_message = ?, next_retry_at = ?
		WHERE id = ?
	`, status, nullableInt(responseCode), responseBody, errorMessage, nextRetryAt, id)
	return err
}

const deliveryColumns = `id, webhook_id, chain_id, event, payload, status, response_code, response_body, error_message, attempts, next_retry_at, delivered_at, created_at`

// GetByID returns (nil, nil) when no delivery exists with the given id.
func (r *DeliveryRepository) GetByID(id string) (*models.RelayDelivery, error) {
	row := r.db.QueryRow(`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = ?`, id)
	delivery, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return delivery, err
}

// ListByWebhook returns a webhook's delivery attempts newest-first.
func (r *DeliveryRepository) ListByWebhook(webhookID string, limit int) ([]*models.RelayDelivery, error) {
	rows, err := r.db.Query(`
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE webhook_id = ?
		ORDER BY created_at DESC, attempts DESC
		LIMIT ?
	`, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

// ListByChain returns one logical delivery's attempts in order.
func (r *DeliveryRepository) ListByChain(chainID string) ([]*models.RelayDelivery, error) {
	rows, err := r.db.Query(`
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE chain_id = ?
		ORDER BY attempts ASC
	`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

// ListDueRetries finds chains abandoned mid-retry: the latest record of a
// chain still in retrying state whose next_retry_at has passed. Chains with
// a newer attempt record are excluded since a live process already picked
// them up.
func (r *DeliveryRepository) ListDueRetries(now int64, limit int) ([]*models.RelayDelivery, error) {
	rows, err := r.db.Query(`
		SELECT `+deliveryColumns+` FROM webhook_deliveries d
		WHERE d.status = ?
		  AND d.next_retry_at IS NOT NULL
		  AND d.next_retry_at <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM webhook_deliveries n
			WHERE n.chain_id = d.chain_id AND n.attempts > d.attempts
		  )
		ORDER BY d.next_retry_at ASC
		LIMIT ?
	`, models.DeliveryStatusRetrying, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

// DeleteOlderThan prunes delivery records created before the cutoff and
// returns the number of rows removed.
func (r *DeliveryRepository) DeleteOlderThan(cutoff int64) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM webhook_deliveries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountByStatus returns delivery totals grouped by status, for metrics.
func (r *DeliveryRepository) CountByStatus() (map[string]int64, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM webhook_deliveries GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func collectDeliveries(rows *sql.Rows) ([]*models.RelayDelivery, error) {
	var deliveries []*models.RelayDelivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

func scanDelivery(row rowScanner) (*models.RelayDelivery, error) {
	var d models.RelayDelivery
	var payloadStr string
	var responseCode sql.NullInt64
	var responseBody, errorMessage sql.NullString
	var nextRetryAt, deliveredAt sql.NullInt64

	err := row.Scan(&d.ID, &d.WebhookID, &d.ChainID, &d.Event, &payloadStr, &d.Status,
		&responseCode, &responseBody, &errorMessage, &d.Attempts, &nextRetryAt, &deliveredAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if responseCode.Valid {
		d.ResponseCode = int(responseCode.Int64)
	}
	if responseBody.Valid {
		d.ResponseBody = responseBody.String
	}
	if errorMessage.Valid {
		d.ErrorMessage = errorMessage.String
	}
	if nextRetryAt.Valid {
		d.NextRetryAt = new(int64)
		*d.NextRetryAt = nextRetryAt.Int64
	}
	if deliveredAt.Valid {
		d.DeliveredAt = new(int64)
		*d.DeliveredAt = deliveredAt.Int64
	}
	if err := json.Unmarshal([]byte(payloadStr), &d.Payload); err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
