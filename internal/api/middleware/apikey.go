package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	apiContext "relayd/internal/api/context"
	"relayd/internal/pkg/errors"
	"relayd/internal/platform/repositories"
)

// APIKeyMiddleware authenticates event producers on the relay trigger
// endpoint. Keys are presented in the X-API-Key header and looked up by
// their SHA-256 hash.
type APIKeyMiddleware struct {
	repo *repositories.APIKeyRepository
}

func NewAPIKeyMiddleware(repo *repositories.APIKeyRepository) *APIKeyMiddleware {
	return &APIKeyMiddleware{repo: repo}
}

func (m *APIKeyMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-API-Key")
		if rawKey == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing API key", nil)
			return
		}

		hash := sha256.Sum256([]byte(rawKey))
		key, err := m.repo.GetByHash(hex.EncodeToString(hash[:]))
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to validate API key", nil)
			return
		}
		if key == nil || key.RevokedAt != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}
		if key.ExpiresAt != nil && *key.ExpiresAt < time.Now().Unix() {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "API key expired", nil)
			return
		}

		go m.repo.UpdateLastUsed(key.ID)

		ctx := context.WithValue(r.Context(), apiContext.APIKey, key)
		next(w, r.WithContext(ctx))
	}
}
