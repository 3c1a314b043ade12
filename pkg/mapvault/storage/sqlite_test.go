package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_mapvault.sqlite3")
	t.Setenv("MAPVAULT_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

// TestNewDBClient tests database initialization
func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

// TestNewDBClientWithCustomPath tests database creation in a nested directory
func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

func TestSetAndGet(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	if err := client.Set(ctx, KindAudio, "map-1", []byte("audio bytes")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := client.Get(ctx, KindAudio, "map-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("audio bytes")) {
		t.Errorf("Expected 'audio bytes', got %q", got)
	}
}

func TestGetMissingReturnsBlobMissing(t *testing.T) {
	client, _ := setupTestDB(t)

	_, err := client.Get(context.Background(), KindImage, "nope")
	if !errors.Is(err, ErrBlobMissing) {
		t.Fatalf("Expected ErrBlobMissing, got %v", err)
	}
}

// TestKindsAreIndependent checks that the three logical stores never see each other's keys
func TestKindsAreIndependent(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	if err := client.Set(ctx, KindMetadata, "shared", []byte("meta")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := client.Get(ctx, KindAudio, "shared"); !errors.Is(err, ErrBlobMissing) {
		t.Errorf("Expected audio store to be empty, got %v", err)
	}

	keys, err := client.Keys(ctx, KindImage)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no image keys, got %v", keys)
	}
}

// TestSetOverwrites tests last-write-wins and that the key is listed once
func TestSetOverwrites(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	for _, v := range []string{"first", "second"} {
		if err := client.Set(ctx, KindMetadata, "dup", []byte(v)); err != nil {
			t.Fatalf("Set %s failed: %v", v, err)
		}
	}

	got, err := client.Get(ctx, KindMetadata, "dup")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Expected 'second', got %q", got)
	}

	var count int64
	client.DB.Model(&Blob{}).Where("kind = ? AND blob_key = ?", "metadata", "dup").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 row, found %d", count)
	}
}

func TestSetEmptyClearsPayload(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	if err := client.Set(ctx, KindImage, "m", []byte("cover")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := client.Set(ctx, KindImage, "m", nil); err != nil {
		t.Fatalf("Set empty failed: %v", err)
	}

	got, err := client.Get(ctx, KindImage, "m")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty payload, got %q", got)
	}
}

// TestKeysKeepInsertionOrder checks that overwriting does not move a key
func TestKeysKeepInsertionOrder(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	for _, k := range []string{"c", "a", "b"} {
		if err := client.Set(ctx, KindMetadata, k, []byte(k)); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}
	if err := client.Set(ctx, KindMetadata, "c", []byte("again")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	keys, err := client.Keys(ctx, KindMetadata)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"c", "a", "b"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, keys)
			break
		}
	}
}

func TestUnknownKindRejected(t *testing.T) {
	client, _ := setupTestDB(t)

	if err := client.Set(context.Background(), Kind("video"), "x", nil); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestNilClient(t *testing.T) {
	var client *DBClient

	if _, err := client.Get(context.Background(), KindAudio, "x"); err == nil {
		t.Error("Expected error from nil client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client should be a no-op, got %v", err)
	}
}
