package relay

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

const (
	MaxRetryCount     = 5
	DefaultRetryCount = 3

	secretBytes         = 32
	secretPreviewLength = 8
)

type CreateWebhookInput struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Provider    string            `json:"provider"`
	Events      []string          `json:"events"`
	Enabled     *bool             `json:"enabled"`
	RetryCount  int               `json:"retry_count"`
	Headers     map[string]string `json:"headers"`
	Description string            `json:"description"`
}

// UpdateWebhookInput merges only the supplied fields. Nil pointers (and a
// nil Events slice) mean "leave unchanged". The secret is never updatable
// through this path; see Registry.RotateSecret.
type UpdateWebhookInput struct {
	Name        *string           `json:"name"`
	URL         *string           `json:"url"`
	Provider    *string           `json:"provider"`
	Events      []string          `json:"events"`
	Enabled     *bool             `json:"enabled"`
	RetryCount  *int              `json:"retry_count"`
	Headers     map[string]string `json:"headers"`
	Description *string           `json:"description"`
}

// SanitizedWebhook is the externally-visible representation of a config.
// The full secret never crosses the API boundary after creation; only a
// short non-reversible preview is exposed.
type SanitizedWebhook struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	SecretPreview  string            `json:"secret_preview"`
	Provider       string            `json:"provider"`
	Events         []string          `json:"events"`
	Enabled        bool              `json:"enabled"`
	RetryCount     int               `json:"retry_count"`
	Headers        map[string]string `json:"headers"`
	Description    string            `json:"description,omitempty"`
	CreatedAt      int64             `json:"created_at"`
	UpdatedAt      int64             `json:"updated_at"`
}

// Registry manages webhook subscriptions for the relay.
type Registry struct {
	repo *repositories.WebhookRepository
}

func NewRegistry(repo *repositories.WebhookRepository) *Registry {
	return &Registry{repo: repo}
}

// Create validates and persists a new webhook subscription. The secret is
// generated server-side and returned in full exactly once, here.
func (r *Registry) Create(orgID string, input *CreateWebhookInput) (*models.WebhookConfig, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if err := validateURL(input.URL); err != nil {
		return nil, err
	}
	if err := validateEventSet(input.Events); err != nil {
		return nil, err
	}
	if err := validateHeaders(input.Headers); err != nil {
		return nil, err
	}
	provider, err := normalizeProvider(input.Provider)
	if err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	headers := input.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	webhook := &models.WebhookConfig{
		OrganizationID: orgID,
		Name:           input.Name,
		URL:            input.URL,
		Secret:         secret,
		Provider:       provider,
		Events:         input.Events,
		Enabled:        enabled,
		RetryCount:     clampRetryCount(input.RetryCount),
		Headers:        headers,
		Description:    input.Description,
	}

	if err := r.repo.Create(webhook); err != nil {
		return nil, persistErr(err)
	}
	return webhook, nil
}

// List returns an organization's webhooks newest-first, optionally filtered
// by enabled state.
func (r *Registry) List(orgID string, enabled *bool) ([]*models.WebhookConfig, error) {
	webhooks, err := r.repo.ListByOrg(orgID, enabled)
	if err != nil {
		return nil, persistErr(err)
	}
	return webhooks, nil
}

func (r *Registry) Get(id string) (*models.WebhookConfig, error) {
	webhook, err := r.repo.GetByID(id)
	if err != nil {
		return nil, persistErr(err)
	}
	if webhook == nil {
		return nil, ErrWebhookNotFound
	}
	return webhook, nil
}

// Update merges the supplied fields into an existing webhook, re-validating
// URL and events when present.
func (r *Registry) Update(id string, input *UpdateWebhookInput) (*models.WebhookConfig, error) {
	webhook, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	if input.URL != nil {
		if err := validateURL(*input.URL); err != nil {
			return nil, err
		}
		webhook.URL = *input.URL
	}
	if input.Events != nil {
		if err := validateEventSet(input.Events); err != nil {
			return nil, err
		}
		webhook.Events = input.Events
	}
	if input.Headers != nil {
		if err := validateHeaders(input.Headers); err != nil {
			return nil, err
		}
		webhook.Headers = input.Headers
	}
	if input.Provider != nil {
		provider, err := normalizeProvider(*input.Provider)
		if err != nil {
			return nil, err
		}
		webhook.Provider = provider
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, &ValidationError{Field: "name", Message: "name is required"}
		}
		webhook.Name = *input.Name
	}
	if input.Enabled != nil {
		webhook.Enabled = *input.Enabled
	}
	if input.RetryCount != nil {
		webhook.RetryCount = clampRetryCount(*input.RetryCount)
	}
	if input.Description != nil {
		webhook.Description = *input.Description
	}

	if err := r.repo.Update(webhook); err != nil {
		return nil, persistErr(err)
	}
	return webhook, nil
}

// Delete hard-deletes a webhook. Delivery history is retained for audit and
// must tolerate the dangling webhook_id reference.
func (r *Registry) Delete(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	if err := r.repo.Delete(id); err != nil {
		return persistErr(err)
	}
	return nil
}

// RotateSecret replaces a webhook's secret with a freshly generated one and
// returns the config carrying the new secret, visible once. In-flight
// deliveries signed with the old secret will no longer verify.
func (r *Registry) RotateSecret(id string) (*models.WebhookConfig, error) {
	webhook, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	if err := r.repo.UpdateSecret(id, secret); err != nil {
		return nil, persistErr(err)
	}
	webhook.Secret = secret
	return webhook, nil
}

// Sanitize strips the full secret from a config for external responses.
func Sanitize(w *models.WebhookConfig) *SanitizedWebhook {
	preview := ""
	if len(w.Secret) >= secretPreviewLength {
		preview = w.Secret[:secretPreviewLength] + "..."
	}
	return &SanitizedWebhook{
		ID:             w.ID,
		OrganizationID: w.OrganizationID,
		Name:           w.Name,
		URL:            w.URL,
		SecretPreview:  preview,
		Provider:       w.Provider,
		Events:         w.Events,
		Enabled:        w.Enabled,
		RetryCount:     w.RetryCount,
		Headers:        w.Headers,
		Description:    w.Description,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

func validateURL(raw string) error {
	if !IsValidWebhookURL(raw) {
		return &ValidationError{Field: "url", Message: "must be an HTTPS URL (or localhost for development)"}
	}
	return nil
}

func validateEventSet(events []string) error {
	if len(events) == 0 {
		return &ValidationError{Field: "events", Message: "at least one event is required"}
	}
	if invalid := ValidateEvents(events); len(invalid) > 0 {
		return &ValidationError{Field: "events", Message: "unknown event types", Invalid: invalid}
	}
	return nil
}

// validateHeaders rejects custom headers that would shadow the reserved
// signing headers on the outbound request.
func validateHeaders(headers map[string]string) error {
	var reserved []string
	for name := range headers {
		if isReservedHeader(name) {
			reserved = append(reserved, name)
		}
	}
	if len(reserved) > 0 {
		return &ValidationError{Field: "headers", Message: "reserved header names", Invalid: reserved}
	}
	return nil
}

func normalizeProvider(provider string) (string, error) {
	switch provider {
	case "":
		return models.ProviderCustom, nil
	case models.ProviderZapier, models.ProviderMake, models.ProviderCustom:
		return provider, nil
	default:
		return "", &ValidationError{Field: "provider", Message: "must be zapier, make or custom"}
	}
}

func clampRetryCount(n int) int {
	if n <= 0 {
		return DefaultRetryCount
	}
	if n > MaxRetryCount {
		return MaxRetryCount
	}
	return n
}

func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
