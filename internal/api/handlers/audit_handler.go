package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apiContext "relayd/internal/api/context"
	"relayd/internal/pkg/errors"
	"relayd/internal/platform/audit"
	"relayd/internal/platform/auth"
)

type AuditHandler struct {
	logger *audit.Logger
}

func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

// List returns the per-fan-out relay summaries for the caller's organization.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	entries, err := h.logger.ListByOrg(claims.OrganizationID, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}
	if entries == nil {
		entries = []*audit.RelayAudit{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
