package relay

import (
	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// History is the read path over persisted delivery records. Pure queries,
// no side effects.
type History struct {
	deliveries *repositories.DeliveryRepository
}

func NewHistory(deliveries *repositories.DeliveryRepository) *History {
	return &History{deliveries: deliveries}
}

// ListDeliveries returns a webhook's attempts newest-first.
func (h *History) ListDeliveries(webhookID string, limit int) ([]*models.RelayDelivery, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	records, err := h.deliveries.ListByWebhook(webhookID, limit)
	if err != nil {
		return nil, persistErr(err)
	}
	return records, nil
}

// ListChain reconstructs one logical delivery: all attempt records sharing a
// chain id, ordered by attempt number.
func (h *History) ListChain(chainID string) ([]*models.RelayDelivery, error) {
	records, err := h.deliveries.ListByChain(chainID)
	if err != nil {
		return nil, persistErr(err)
	}
	return records, nil
}
