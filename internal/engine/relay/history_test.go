package relay

import (
	"fmt"
	"testing"

	"relayd/internal/platform/models"
	"relayd/internal/platform/repositories"
)

func TestHistoryListDeliveries(t *testing.T) {
	db := setupTestDB(t)
	deliveries := repositories.NewDeliveryRepository(db)
	history := NewHistory(deliveries)

	payload := testPayload("org_1", EventTaskCreated, "s")
	for i := 0; i < 60; i++ {
		record := &models.RelayDelivery{
			WebhookID: "wh_1",
			ChainID:   fmt.Sprintf("chain_%d", i),
			Event:     payload.Event,
			Payload:   payload,
			Status:    models.DeliveryStatusSuccess,
			Attempts:  1,
			CreatedAt: int64(1000 + i),
		}
		if err := deliveries.Create(record); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	records, err := history.ListDeliveries("wh_1", 0)
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(records) != DefaultHistoryLimit {
		t.Fatalf("default limit returned %d records, want %d", len(records), DefaultHistoryLimit)
	}
	// Newest first
	if records[0].CreatedAt != 1059 {
		t.Errorf("first record created_at = %d, want 1059", records[0].CreatedAt)
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt > records[i-1].CreatedAt {
			t.Fatal("records are not in newest-first order")
		}
	}

	few, err := history.ListDeliveries("wh_1", 5)
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(few) != 5 {
		t.Errorf("explicit limit returned %d records, want 5", len(few))
	}

	none, err := history.ListDeliveries("wh_other", 10)
	if err != nil {
		t.Fatalf("ListDeliveries() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("foreign webhook returned %d records, want 0", len(none))
	}
}

func TestHistoryListChain(t *testing.T) {
	db := setupTestDB(t)
	deliveries := repositories.NewDeliveryRepository(db)
	history := NewHistory(deliveries)

	payload := testPayload("org_1", EventIncidentCreated, "s")
	statuses := []string{models.DeliveryStatusRetrying, models.DeliveryStatusRetrying, models.DeliveryStatusFailed}
	for i, status := range statuses {
		record := &models.RelayDelivery{
			WebhookID: "wh_1",
			ChainID:   "chain_a",
			Event:     payload.Event,
			Payload:   payload,
			Status:    status,
			Attempts:  i + 1,
			CreatedAt: int64(2000 + i),
		}
		if err := deliveries.Create(record); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	chain, err := history.ListChain("chain_a")
	if err != nil {
		t.Fatalf("ListChain() error = %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain has %d records, want 3", len(chain))
	}
	for i, rec := range chain {
		if rec.Attempts != i+1 {
			t.Errorf("record %d attempts = %d, want ascending order", i, rec.Attempts)
		}
		if rec.Status != statuses[i] {
			t.Errorf("record %d status = %q, want %q", i, rec.Status, statuses[i])
		}
	}
}
