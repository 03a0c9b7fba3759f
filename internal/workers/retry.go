package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"relayd/internal/engine/relay"
	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

const DefaultSweepBatchSize = 100

// RetrySweeper resumes delivery chains that were abandoned mid-retry: a
// process that died between the backoff and the next attempt leaves the
// chain's latest record in retrying state with an elapsed next_retry_at.
// The sweeper picks those up and drives the rest of the chain through the
// same engine, so the retry intent recorded in the store survives process
// restarts.
type RetrySweeper struct {
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	engine     *relay.Engine
	batchSize  int
}

func NewRetrySweeper(webhooks *repositories.WebhookRepository, deliveries *repositories.DeliveryRepository, engine *relay.Engine, batchSize int) *RetrySweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &RetrySweeper{
		webhooks:   webhooks,
		deliveries: deliveries,
		engine:     engine,
		batchSize:  batchSize,
	}
}

// Sweep resumes every due chain once. Individual failures are terminal for
// their own chain only.
func (s *RetrySweeper) Sweep(ctx context.Context) error {
	due, err := s.deliveries.ListDueRetries(time.Now().Unix(), s.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	log.Info().Int("count", len(due)).Msg("resuming abandoned delivery chains")

	for _, record := range due {
		webhook, err := s.webhooks.GetByID(record.WebhookID)
		if err != nil {
			log.Error().Err(err).Str("delivery_id", record.ID).Msg("failed to load webhook for retry")
			continue
		}
		if webhook == nil {
			s.terminate(record, "webhook no longer exists")
			continue
		}
		if !webhook.Enabled {
			s.terminate(record, "webhook disabled")
			continue
		}

		result := s.engine.Resume(ctx, webhook, record.Payload, record.ChainID, record.Attempts+1)
		log.Info().
			Str("webhook_id", webhook.ID).
			Str("chain_id", record.ChainID).
			Str("status", result.Status).
			Int("attempts", result.Attempts).
			Msg("resumed delivery chain finished")
	}
	return nil
}

// terminate closes out an orphaned record that can never be delivered.
func (s *RetrySweeper) terminate(record *models.RelayDelivery, reason string) {
	if err := s.deliveries.MarkFailure(record.ID, models.DeliveryStatusFailed, 0, "", reason, nil); err != nil {
		log.Error().Err(err).Str("delivery_id", record.ID).Msg("failed to terminate orphaned delivery")
		return
	}
	log.Warn().Str("delivery_id", record.ID).Str("reason", reason).Msg("terminated orphaned delivery")
}

// PruneHistory deletes delivery records older than the retention window.
func (s *RetrySweeper) PruneHistory(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	removed, err := s.deliveries.DeleteOlderThan(cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Int("retention_days", retentionDays).Msg("pruned delivery history")
	}
	return nil
}
