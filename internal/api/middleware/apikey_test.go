package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	apiContext "relayd/internal/api/context"
	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

func keyRows(orgID string, expiresAt, revokedAt interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "name", "key_prefix", "scopes", "last_used_at", "created_at", "expires_at", "revoked_at"}).
		AddRow("key_1", orgID, "CI key", "rk_live_abc...", `["relay:trigger"]`, nil, int64(1000), expiresAt, revokedAt)
}

func TestAPIKeyMiddleware(t *testing.T) {
	rawKey := "rk_live_0123456789abcdef"
	hash := sha256.Sum256([]byte(rawKey))
	hashHex := hex.EncodeToString(hash[:])

	t.Run("Valid Key", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()
		mock.MatchExpectationsInOrder(false)

		mock.ExpectQuery("SELECT (.+) FROM api_keys WHERE key_hash").
			WithArgs(hashHex).
			WillReturnRows(keyRows("org_123", nil, nil))
		// Fired from a goroutine; may or may not land before the assert.
		mock.ExpectExec("UPDATE api_keys SET last_used_at").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mw := NewAPIKeyMiddleware(repositories.NewAPIKeyRepository(db))

		req, _ := http.NewRequest("POST", "/api/v1/relay", nil)
		req.Header.Set("X-API-Key", rawKey)

		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			key, ok := r.Context().Value(apiContext.APIKey).(*models.APIKey)
			if !ok {
				t.Fatal("API key missing from request context")
			}
			if key.OrganizationID != "org_123" {
				t.Errorf("OrganizationID = %q, want org_123", key.OrganizationID)
			}
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rr.Code)
		}
	})

	t.Run("Missing Key", func(t *testing.T) {
		db, _, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mw := NewAPIKeyMiddleware(repositories.NewAPIKeyRepository(db))

		req, _ := http.NewRequest("POST", "/api/v1/relay", nil)
		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("Unknown Key", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM api_keys WHERE key_hash").
			WithArgs(hashHex).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "key_prefix", "scopes", "last_used_at", "created_at", "expires_at", "revoked_at"}))

		mw := NewAPIKeyMiddleware(repositories.NewAPIKeyRepository(db))

		req, _ := http.NewRequest("POST", "/api/v1/relay", nil)
		req.Header.Set("X-API-Key", rawKey)
		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("Revoked Key", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM api_keys WHERE key_hash").
			WithArgs(hashHex).
			WillReturnRows(keyRows("org_123", nil, time.Now().Unix()))

		mw := NewAPIKeyMiddleware(repositories.NewAPIKeyRepository(db))

		req, _ := http.NewRequest("POST", "/api/v1/relay", nil)
		req.Header.Set("X-API-Key", rawKey)
		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("Expired Key", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM api_keys WHERE key_hash").
			WithArgs(hashHex).
			WillReturnRows(keyRows("org_123", time.Now().Unix()-10, nil))

		mw := NewAPIKeyMiddleware(repositories.NewAPIKeyRepository(db))

		req, _ := http.NewRequest("POST", "/api/v1/relay", nil)
		req.Header.Set("X-API-Key", rawKey)
		rr := httptest.NewRecorder()
		handler := mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})
}
