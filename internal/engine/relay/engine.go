package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

// Reserved outbound headers. Custom webhook headers may not shadow these.
const (
	HeaderSignature = "X-Relay-Signature"
	HeaderEvent     = "X-Relay-Event"
	HeaderDelivery  = "X-Relay-Delivery"
)

const (
	userAgent = "relayd-webhooks/1.0"

	DefaultDeliveryTimeout = 30 * time.Second

	maxResponseBodyLength = 1000
)

func isReservedHeader(name string) bool {
	switch strings.ToLower(name) {
	case strings.ToLower(HeaderSignature), strings.ToLower(HeaderEvent), strings.ToLower(HeaderDelivery):
		return true
	}
	return false
}

// backoffDelay is the pause after a failed attempt n before attempt n+1:
// 2^n seconds (2s, 4s, 8s, 16s, 32s for attempts 1..5).
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Engine performs webhook delivery attempts and drives the retry chain.
// Every attempt is persisted in pending state before the network call and
// finalized after it, so no attempt is ever unrecorded.
type Engine struct {
	deliveries *repositories.DeliveryRepository
	client     *http.Client

	// sleep is swapped out in tests so backoff does not wall-clock wait.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(deliveries *repositories.DeliveryRepository, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Engine{
		deliveries: deliveries,
		client:     &http.Client{Timeout: timeout},
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver runs the full attempt chain for one webhook and returns the
// terminal delivery record. Failures are reported through the record's
// status, never as an error.
func (e *Engine) Deliver(ctx context.Context, webhook *models.WebhookConfig, payload *models.RelayPayload) *models.RelayDelivery {
	chainID := "chain_" + uuid.New().String()
	return e.runChain(ctx, webhook, payload, chainID, 1)
}

// Resume continues an interrupted chain from the given attempt number.
// Used by the retry sweeper when a process died between backoff and the
// next attempt.
func (e *Engine) Resume(ctx context.Context, webhook *models.WebhookConfig, payload *models.RelayPayload, chainID string, attempt int) *models.RelayDelivery {
	return e.runChain(ctx, webhook, payload, chainID, attempt)
}

func (e *Engine) runChain(ctx context.Context, webhook *models.WebhookConfig, payload *models.RelayPayload, chainID string, attempt int) *models.RelayDelivery {
	retries := clampRetryCount(webhook.RetryCount)

	for {
		record, err := e.attempt(ctx, webhook, payload, chainID, attempt)
		if err != nil {
			// The pending record could not be written. Do not call out:
			// an unrecorded attempt would violate the durability guarantee.
			log.Error().Err(err).
				Str("webhook_id", webhook.ID).
				Str("chain_id", chainID).
				Int("attempt", attempt).
				Msg("failed to create delivery record")
			return &models.RelayDelivery{
				WebhookID:    webhook.ID,
				ChainID:      chainID,
				Event:        payload.Event,
				Payload:      payload,
				Status:       models.DeliveryStatusFailed,
				ErrorMessage: err.Error(),
				Attempts:     attempt,
				CreatedAt:    time.Now().Unix(),
			}
		}

		if record.Status == models.DeliveryStatusSuccess || attempt >= retries {
			return record
		}

		if err := e.sleep(ctx, backoffDelay(attempt)); err != nil {
			return record
		}
		attempt++
	}
}

// attempt persists one pending delivery record, performs the HTTP POST and
// finalizes the record. The returned error is non-nil only when the pending
// record itself could not be created.
func (e *Engine) attempt(ctx context.Context, webhook *models.WebhookConfig, payload *models.RelayPayload, chainID string, attempt int) (*models.RelayDelivery, error) {
	record := &models.RelayDelivery{
		ID:        "del_" + uuid.New().String(),
		WebhookID: webhook.ID,
		ChainID:   chainID,
		Event:     payload.Event,
		Payload:   payload,
		Status:    models.DeliveryStatusPending,
		Attempts:  attempt,
		CreatedAt: time.Now().Unix(),
	}
	if err := e.deliveries.Create(record); err != nil {
		return nil, persistErr(err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.finishFailure(record, webhook, attempt, 0, "", "failed to serialize payload: "+err.Error())
		return record, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		e.finishFailure(record, webhook, attempt, 0, "", err.Error())
		return record, nil
	}

	// Custom headers first, reserved headers after, so a webhook can never
	// override the signature, event or delivery identifier.
	for name, value := range webhook.Headers {
		if isReservedHeader(name) {
			continue
		}
		req.Header.Set(name, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSignature, payload.Signature)
	req.Header.Set(HeaderEvent, payload.Event)
	req.Header.Set(HeaderDelivery, record.ID)

	resp, err := e.client.Do(req)
	if err != nil {
		e.finishFailure(record, webhook, attempt, 0, "", err.Error())
		return record, nil
	}
	defer resp.Body.Close()

	respBody := readTruncated(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		deliveredAt := time.Now().Unix()
		record.Status = models.DeliveryStatusSuccess
		record.ResponseCode = resp.StatusCode
		record.ResponseBody = respBody
		record.DeliveredAt = &deliveredAt
		if err := e.deliveries.MarkSuccess(record.ID, resp.StatusCode, respBody, deliveredAt); err != nil {
			log.Error().Err(err).Str("delivery_id", record.ID).Msg("failed to finalize delivery record")
		}
		log.Debug().
			Str("webhook_id", webhook.ID).
			Str("delivery_id", record.ID).
			Str("event", payload.Event).
			Int("attempt", attempt).
			Int("status_code", resp.StatusCode).
			Msg("webhook delivered")
		return record, nil
	}

	e.finishFailure(record, webhook, attempt, resp.StatusCode,
		respBody, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	return record, nil
}

func (e *Engine) finishFailure(record *models.RelayDelivery, webhook *models.WebhookConfig, attempt, code int, respBody, errMsg string) {
	status := models.DeliveryStatusFailed
	var nextRetryAt *int64
	if attempt < clampRetryCount(webhook.RetryCount) {
		status = models.DeliveryStatusRetrying
		at := time.Now().Add(backoffDelay(attempt)).Unix()
		nextRetryAt = &at
	}

	record.Status = status
	record.ResponseCode = code
	record.ResponseBody = respBody
	record.ErrorMessage = errMsg
	record.NextRetryAt = nextRetryAt

	if err := e.deliveries.MarkFailure(record.ID, status, code, respBody, errMsg, nextRetryAt); err != nil {
		log.Error().Err(err).Str("delivery_id", record.ID).Msg("failed to finalize delivery record")
	}
	log.Warn().
		Str("webhook_id", webhook.ID).
		Str("delivery_id", record.ID).
		Str("event", record.Event).
		Int("attempt", attempt).
		Str("status", status).
		Str("error", errMsg).
		Msg("webhook delivery failed")
}

func readTruncated(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBodyLength+1))
	if err != nil {
		return ""
	}
	if len(body) > maxResponseBodyLength {
		body = body[:maxResponseBodyLength]
	}
	return string(body)
}
