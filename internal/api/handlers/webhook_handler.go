package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "relayd/internal/api/context"
	"relayd/internal/engine/relay"
	"relayd/internal/pkg/errors"
	"relayd/internal/platform/auth"
	"relayd/internal/platform/models"
)

type WebhookHandler struct {
	registry *relay.Registry
	tester   *relay.Tester
	history  *relay.History
}

func NewWebhookHandler(registry *relay.Registry, tester *relay.Tester, history *relay.History) *WebhookHandler {
	return &WebhookHandler{registry: registry, tester: tester, history: history}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var input relay.CreateWebhookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, err := h.registry.Create(claims.OrganizationID, &input)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	// The only response ever carrying the full secret.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(webhook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var enabled *bool
	if v := r.URL.Query().Get("enabled"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "enabled must be true or false", nil)
			return
		}
		enabled = &parsed
	}

	webhooks, err := h.registry.List(claims.OrganizationID, enabled)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	sanitized := make([]*relay.SanitizedWebhook, 0, len(webhooks))
	for _, webhook := range webhooks {
		sanitized = append(sanitized, relay.Sanitize(webhook))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitized)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(relay.Sanitize(webhook))
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var input relay.UpdateWebhookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	updated, err := h.registry.Update(webhook.ID, &input)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(relay.Sanitize(updated))
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.registry.Delete(webhook.ID); err != nil {
		writeRelayError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	rotated, err := h.registry.RotateSecret(webhook.ID)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	// The new secret is visible once, here.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rotated)
}

func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	result, err := h.tester.TestWebhook(r.Context(), webhook.ID)
	if err != nil {
		writeRelayError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *WebhookHandler) TestURL(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if !relay.IsValidWebhookURL(req.URL) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "url must be an HTTPS URL (or localhost for development)", nil)
		return
	}

	result, err := h.tester.TestURL(r.Context(), req.URL, claims.OrganizationID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	deliveries, err := h.history.ListDeliveries(webhook.ID, limit)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []*models.RelayDelivery{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deliveries)
}

func (h *WebhookHandler) GetChain(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	chainID := params.ByName("chain_id")

	deliveries, err := h.history.ListChain(chainID)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	// Another organization's chain looks identical to a missing one.
	if len(deliveries) == 0 || h.chainOrg(deliveries[0]) != claims.OrganizationID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Delivery chain not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deliveries)
}

// chainOrg resolves the organization owning a delivery chain: the webhook's
// org, or the payload's when the webhook has since been deleted (history
// outlives the config).
func (h *WebhookHandler) chainOrg(record *models.RelayDelivery) string {
	webhook, err := h.registry.Get(record.WebhookID)
	if err == nil {
		return webhook.OrganizationID
	}
	if record.Payload != nil {
		return record.Payload.OrganizationID
	}
	return ""
}

// loadOwned fetches the webhook from the route parameter and hides other
// organizations' webhooks behind a 404.
func (h *WebhookHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.WebhookConfig, bool) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("webhook_id")

	webhook, err := h.registry.Get(id)
	if err != nil {
		writeRelayError(w, err)
		return nil, false
	}
	if webhook.OrganizationID != claims.OrganizationID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
		return nil, false
	}
	return webhook, true
}

func writeRelayError(w http.ResponseWriter, err error) {
	if verr, ok := err.(*relay.ValidationError); ok {
		errors.WriteValidationError(w, verr)
		return
	}
	if err == relay.ErrWebhookNotFound {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
		return
	}
	errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
}
