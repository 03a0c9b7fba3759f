package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "relayd/internal/api/context"
	"relayd/internal/engine/relay"
	"relayd/internal/pkg/errors"
	"relayd/internal/platform/models"
)

// RelayHandler is the producer-facing surface: event-producing systems POST
// events here and the dispatcher fans them out to subscribed webhooks.
type RelayHandler struct {
	dispatcher *relay.Dispatcher
}

func NewRelayHandler(dispatcher *relay.Dispatcher) *RelayHandler {
	return &RelayHandler{dispatcher: dispatcher}
}

func (h *RelayHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Context().Value(apiContext.APIKey).(*models.APIKey)

	var req struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	summary, err := h.dispatcher.RelayEvent(r.Context(), apiKey.OrganizationID, req.Event, req.Data)
	if err != nil {
		if verr, ok := err.(*relay.ValidationError); ok {
			errors.WriteValidationError(w, verr)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// ListEvents exposes the event catalog with labels so integrations can
// render a subscription picker.
func (h *RelayHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	type catalogEntry struct {
		Event string `json:"event"`
		Label string `json:"label"`
	}

	events := relay.Events()
	entries := make([]catalogEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, catalogEntry{Event: e, Label: relay.EventLabel(e)})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
