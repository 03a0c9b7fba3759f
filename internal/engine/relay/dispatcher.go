package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"relayd/internal/platform/audit"
	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

// Dispatcher resolves the enabled subscribers of an event and fans out
// concurrent deliveries through the Engine.
type Dispatcher struct {
	webhooks *repositories.WebhookRepository
	engine   *Engine
	audit    *audit.Logger
}

func NewDispatcher(webhooks *repositories.WebhookRepository, engine *Engine, auditLogger *audit.Logger) *Dispatcher {
	return &Dispatcher{webhooks: webhooks, engine: engine, audit: auditLogger}
}

// RelayEvent delivers one event to every enabled webhook of the organization
// subscribed to it. All subscribers share one timestamp and body; each gets
// a distinct signature under its own secret. Deliveries run concurrently and
// one subscriber's failure never affects another: partial failure is reported
// through the summary counts, not as an error.
func (d *Dispatcher) RelayEvent(ctx context.Context, orgID, event string, data map[string]interface{}) (*models.RelaySummary, error) {
	if !IsValidEvent(event) {
		return nil, &ValidationError{Field: "event", Message: fmt.Sprintf("unknown event type %q", event)}
	}

	subscribers, err := d.webhooks.GetSubscribed(orgID, event)
	if err != nil {
		return nil, persistErr(err)
	}

	summary := &models.RelaySummary{Total: len(subscribers)}
	if len(subscribers) == 0 {
		return summary, nil
	}

	// One timestamp per fan-out so every subscriber sees the same body.
	timestamp := time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(&models.PayloadBody{
		Event:          event,
		Timestamp:      timestamp,
		OrganizationID: orgID,
		Data:           data,
	})
	if err != nil {
		return nil, &ValidationError{Field: "data", Message: "event data is not serializable"}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, webhook := range subscribers {
		wg.Add(1)
		go func(webhook *models.WebhookConfig) {
			defer wg.Done()

			payload := &models.RelayPayload{
				Event:          event,
				Timestamp:      timestamp,
				OrganizationID: orgID,
				Data:           data,
				Signature:      Sign(body, webhook.Secret),
			}
			record := d.engine.Deliver(ctx, webhook, payload)

			mu.Lock()
			if record.Status == models.DeliveryStatusSuccess {
				summary.Delivered++
			} else {
				summary.Failed++
			}
			mu.Unlock()
		}(webhook)
	}
	wg.Wait()

	d.audit.LogRelay(orgID, event, summary.Delivered, summary.Failed, summary.Total)
	log.Info().
		Str("org_id", orgID).
		Str("event", event).
		Int("delivered", summary.Delivered).
		Int("failed", summary.Failed).
		Int("total", summary.Total).
		Msg("relay event dispatched")

	return summary, nil
}
