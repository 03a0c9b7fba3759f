package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"relayd/internal/platform/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_keys (id, organization_id, name, key_hash, key_prefix, scopes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, key.ID, key.OrganizationID, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.CreatedAt, key.ExpiresAt)
	return err
}

// GetByHash returns (nil, nil) when no key matches the hash.
func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	query := `SELECT id, organization_id, name, key_prefix, scopes, last_used_at, created_at, expires_at, revoked_at FROM api_keys WHERE key_hash = ?`
	row := r.db.QueryRow(query, hash)

	key, err := scanAPIKey(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	key.KeyHash = hash
	return key, nil
}

func (r *APIKeyRepository) ListByOrg(orgID string) ([]*models.APIKey, error) {
	query := `SELECT id, organization_id, name, key_prefix, scopes, last_used_at, created_at, expires_at, revoked_at FROM api_keys WHERE organization_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *APIKeyRepository) Revoke(id string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET revoked_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

func (r *APIKeyRepository) UpdateLastUsed(id string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var k models.APIKey
	var scopesStr string
	var lastUsedAt, expiresAt, revokedAt sql.NullInt64

	err := row.Scan(&k.ID, &k.OrganizationID, &k.Name, &k.KeyPrefix, &scopesStr, &lastUsedAt, &k.CreatedAt, &expiresAt, &revokedAt)
	if err != nil {
		return nil, err
	}

	if lastUsedAt.Valid {
		k.LastUsedAt = new(int64)
		*k.LastUsedAt = lastUsedAt.Int64
	}
	if expiresAt.Valid {
		k.ExpiresAt = new(int64)
		*k.ExpiresAt = expiresAt.Int64
	}
	if revokedAt.Valid {
		k.RevokedAt = new(int64)
		*k.RevokedAt = revokedAt.Int64
	}
	json.Unmarshal([]byte(scopesStr), &k.Scopes)
	return &k, nil
}
