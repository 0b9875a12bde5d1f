package store

import (
	"context"
	"testing"

	"github.com/erazemk/avtomat/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSettingsUpsert(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, _ := GetSetting(ctx, database, SettingSeededAt); ok {
		t.Fatal("expected setting to be absent")
	}

	if err := SetSetting(ctx, database, SettingSeededAt, "first"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := SetSetting(ctx, database, SettingSeededAt, "second"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	v, ok, err := GetSetting(ctx, database, SettingSeededAt)
	if err != nil || !ok {
		t.Fatalf("GetSetting: ok=%v err=%v", ok, err)
	}
	if v != "second" {
		t.Errorf("expected 'second', got %q", v)
	}
}
