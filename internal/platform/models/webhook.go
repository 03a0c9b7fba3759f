package models

// Delivery status lifecycle: pending -> success | failed | retrying.
// success and failed are terminal; retrying means another attempt is due.
const (
	DeliveryStatusPending  = "pending"
	DeliveryStatusSuccess  = "success"
	DeliveryStatusFailed   = "failed"
	DeliveryStatusRetrying = "retrying"
)

// Provider hints stored alongside a webhook. Bookkeeping only; the delivery
// path never branches on them.
const (
	ProviderZapier = "zapier"
	ProviderMake   = "make"
	ProviderCustom = "custom"
)

type WebhookConfig struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Secret         string            `json:"secret"`
	Provider       string            `json:"provider"`
	Events         []string          `json:"events"` // JSON array in DB
	Enabled        bool              `json:"enabled"`
	RetryCount     int               `json:"retry_count"`
	Headers        map[string]string `json:"headers"` // JSON object in DB
	Description    string            `json:"description,omitempty"`
	CreatedAt      int64             `json:"created_at"`
	UpdatedAt      int64             `json:"updated_at"`
}

// PayloadBody is the signed portion of a relay payload. The signature is
// computed over the exact JSON serialization of this struct, so field order
// must not change; receivers must serialize identically before verifying.
type PayloadBody struct {
	Event          string                 `json:"event"`
	Timestamp      string                 `json:"timestamp"`
	OrganizationID string                 `json:"organization_id"`
	Data           map[string]interface{} `json:"data"`
}

// RelayPayload is the full message body sent to a subscriber: the signed
// body plus the hex HMAC-SHA256 signature keyed by that webhook's secret.
type RelayPayload struct {
	Event          string                 `json:"event"`
	Timestamp      string                 `json:"timestamp"`
	OrganizationID string                 `json:"organization_id"`
	Data           map[string]interface{} `json:"data"`
	Signature      string                 `json:"signature"`
}

func (p *RelayPayload) Body() *PayloadBody {
	return &PayloadBody{
		Event:          p.Event,
		Timestamp:      p.Timestamp,
		OrganizationID: p.OrganizationID,
		Data:           p.Data,
	}
}

// RelayDelivery is the durable record of one delivery attempt. Every retry
// creates a new record; ChainID groups the attempts of one logical delivery.
type RelayDelivery struct {
	ID           string        `json:"id"`
	WebhookID    string        `json:"webhook_id"`
	ChainID      string        `json:"chain_id"`
	Event        string        `json:"event"`
	Payload      *RelayPayload `json:"payload"` // JSON in DB
	Status       string        `json:"status"`
	ResponseCode int           `json:"response_code,omitempty"`
	ResponseBody string        `json:"response_body,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Attempts     int           `json:"attempts"`
	NextRetryAt  *int64        `json:"next_retry_at,omitempty"`
	DeliveredAt  *int64        `json:"delivered_at,omitempty"`
	CreatedAt    int64         `json:"created_at"`
}

// RelaySummary is the aggregate outcome of one fan-out.
type RelaySummary struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}
