package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"relayd/internal/platform/repositories"
)

func TestTestWebhook(t *testing.T) {
	db := setupTestDB(t)
	webhooks := repositories.NewWebhookRepository(db)
	deliveries := repositories.NewDeliveryRepository(db)
	registry := NewRegistry(webhooks)
	engine := NewEngine(deliveries, time.Second)
	instantSleep(engine)
	tester := NewTester(registry, engine, time.Second)

	var (
		mu   sync.Mutex
		body []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = b
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhook, err := registry.Create("org_1", &CreateWebhookInput{
		Name:   "Test target",
		URL:    server.URL,
		Events: []string{EventTaskCreated},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := tester.TestWebhook(context.Background(), webhook.ID)
	if err != nil {
		t.Fatalf("TestWebhook() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if !strings.Contains(result.Message, "200") {
		t.Errorf("result.Message = %q, want the HTTP status mentioned", result.Message)
	}

	mu.Lock()
	defer mu.Unlock()
	var payload struct {
		Event     string                 `json:"event"`
		Data      map[string]interface{} `json:"data"`
		Signature string                 `json:"signature"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("test payload did not parse: %v", err)
	}
	if payload.Event != EventTaskCreated {
		t.Errorf("test payload event = %q, want %q", payload.Event, EventTaskCreated)
	}
	if payload.Data["test"] != true {
		t.Error("test payload missing test flag")
	}
	if payload.Data["message"] != testMessage {
		t.Errorf("test payload message = %v", payload.Data["message"])
	}
	if payload.Signature == "" {
		t.Error("test payload is unsigned")
	}

	// Test deliveries go through the engine, so they land in history.
	records, err := deliveries.ListByWebhook(webhook.ID, 10)
	if err != nil {
		t.Fatalf("ListByWebhook() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("delivery history has %d records after a test, want 1", len(records))
	}
}

func TestTestWebhookNotFound(t *testing.T) {
	db := setupTestDB(t)
	registry := NewRegistry(repositories.NewWebhookRepository(db))
	tester := NewTester(registry, NewEngine(repositories.NewDeliveryRepository(db), time.Second), time.Second)

	if _, err := tester.TestWebhook(context.Background(), "wh_missing"); err != ErrWebhookNotFound {
		t.Errorf("TestWebhook() error = %v, want ErrWebhookNotFound", err)
	}
}

func TestTestURL(t *testing.T) {
	db := setupTestDB(t)
	deliveries := repositories.NewDeliveryRepository(db)
	registry := NewRegistry(repositories.NewWebhookRepository(db))
	tester := NewTester(registry, NewEngine(deliveries, time.Second), time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderSignature) == "" {
			t.Error("unsaved-URL test request is unsigned")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result, err := tester.TestURL(context.Background(), server.URL, "org_1")
	if err != nil {
		t.Fatalf("TestURL() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	// No webhook exists yet, so nothing may be persisted.
	counts, err := deliveries.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("delivery records persisted by TestURL: %v", counts)
	}
}

func TestTestURLFailure(t *testing.T) {
	db := setupTestDB(t)
	registry := NewRegistry(repositories.NewWebhookRepository(db))
	tester := NewTester(registry, NewEngine(repositories.NewDeliveryRepository(db), time.Second), time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := tester.TestURL(context.Background(), server.URL, "org_1")
	if err != nil {
		t.Fatalf("TestURL() error = %v", err)
	}
	if result.Success {
		t.Error("result.Success = true for a 404 endpoint")
	}
	if !strings.Contains(result.Message, "404") {
		t.Errorf("result.Message = %q, want the HTTP status mentioned", result.Message)
	}
}
