package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"relayd/internal/platform/models"
)

const testMessage = "This is a test webhook delivery from relayd"

// TestResult summarizes a test delivery for operators.
type TestResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Status       string `json:"status,omitempty"`
	ResponseCode int    `json:"response_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
}

// Tester sends synthetic deliveries to validate endpoints before or after a
// webhook is persisted.
type Tester struct {
	registry *Registry
	engine   *Engine
	client   *http.Client
}

func NewTester(registry *Registry, engine *Engine, timeout time.Duration) *Tester {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Tester{
		registry: registry,
		engine:   engine,
		client:   &http.Client{Timeout: timeout},
	}
}

// TestWebhook runs a synthetic payload through the full delivery engine,
// retries included, so the delivery shows up in history like any other.
func (t *Tester) TestWebhook(ctx context.Context, webhookID string) (*TestResult, error) {
	webhook, err := t.registry.Get(webhookID)
	if err != nil {
		return nil, err
	}

	payload := buildTestPayload(webhook.OrganizationID, webhook.Secret)
	record := t.engine.Deliver(ctx, webhook, payload)

	result := &TestResult{
		Success:      record.Status == models.DeliveryStatusSuccess,
		Status:       record.Status,
		ResponseCode: record.ResponseCode,
		ResponseBody: record.ResponseBody,
	}
	if result.Success {
		result.Message = fmt.Sprintf("Test delivered successfully (HTTP %d)", record.ResponseCode)
	} else {
		result.Message = "Test delivery failed: " + record.ErrorMessage
	}
	return result, nil
}

// TestURL sends a single signed test request to an arbitrary URL before any
// webhook exists. It uses a throwaway secret, makes exactly one attempt and
// persists nothing: there is no webhook identity to attach history to yet.
func (t *Tester) TestURL(ctx context.Context, rawURL, orgID string) (*TestResult, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	payload := buildTestPayload(orgID, secret)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return &TestResult{Success: false, Message: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSignature, payload.Signature)
	req.Header.Set(HeaderEvent, payload.Event)

	resp, err := t.client.Do(req)
	if err != nil {
		return &TestResult{Success: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	result := &TestResult{
		ResponseCode: resp.StatusCode,
		ResponseBody: readTruncated(resp.Body),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		result.Message = fmt.Sprintf("Test delivered successfully (HTTP %d)", resp.StatusCode)
	} else {
		result.Message = fmt.Sprintf("Endpoint returned HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result, nil
}

func buildTestPayload(orgID, secret string) *models.RelayPayload {
	body := &models.PayloadBody{
		Event:          EventTaskCreated,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		OrganizationID: orgID,
		Data: map[string]interface{}{
			"test":    true,
			"message": testMessage,
		},
	}
	raw, _ := json.Marshal(body)
	return &models.RelayPayload{
		Event:          body.Event,
		Timestamp:      body.Timestamp,
		OrganizationID: body.OrganizationID,
		Data:           body.Data,
		Signature:      Sign(raw, secret),
	}
}
