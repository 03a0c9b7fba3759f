package repositories

import (
	"testing"

	"relayd/internal/platform/models"
)

func TestAPIKeyRepoCreateAndGetByHash(t *testing.T) {
	repo := NewAPIKeyRepository(setupTestDB(t))

	key := &models.APIKey{
		OrganizationID: "org_1",
		Name:           "CI key",
		KeyHash:        "hash-abc",
		KeyPrefix:      "rk_live_abc...",
		Scopes:         []string{"relay:trigger"},
	}
	if err := repo.Create(key); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByHash("hash-abc")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByHash() returned nil for an existing key")
	}
	if got.OrganizationID != "org_1" || got.KeyPrefix != "rk_live_abc..." {
		t.Errorf("GetByHash() = %+v", got)
	}
	if len(got.Scopes) != 1 || got.Scopes[0] != "relay:trigger" {
		t.Errorf("Scopes = %v", got.Scopes)
	}

	missing, err := repo.GetByHash("hash-nope")
	if err != nil {
		t.Fatalf("GetByHash(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("GetByHash(missing) should return nil, nil")
	}
}

func TestAPIKeyRepoRevoke(t *testing.T) {
	repo := NewAPIKeyRepository(setupTestDB(t))

	key := &models.APIKey{OrganizationID: "org_1", Name: "k", KeyHash: "h1", KeyPrefix: "rk_live_h1..."}
	if err := repo.Create(key); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Revoke(key.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	got, err := repo.GetByHash("h1")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if got.RevokedAt == nil {
		t.Error("RevokedAt not set after Revoke")
	}
}

func TestAPIKeyRepoUpdateLastUsed(t *testing.T) {
	repo := NewAPIKeyRepository(setupTestDB(t))

	key := &models.APIKey{OrganizationID: "org_1", Name: "k", KeyHash: "h2", KeyPrefix: "rk_live_h2..."}
	if err := repo.Create(key); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdateLastUsed(key.ID); err != nil {
		t.Fatalf("UpdateLastUsed() error = %v", err)
	}

	got, _ := repo.GetByHash("h2")
	if got.LastUsedAt == nil {
		t.Error("LastUsedAt not set after UpdateLastUsed")
	}
}
