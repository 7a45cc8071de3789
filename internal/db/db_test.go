package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	database, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	database, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	dbPath := filepath.Join(dir, ".comptoir", "comptoir.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}

	version, err := database.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version: got %d, want %d", version, SchemaVersion)
	}
}

func TestOpenRequiresInit(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("Open on uninitialized dir should fail")
	}
}

func TestReopenKeepsVersion(t *testing.T) {
	dir := t.TempDir()

	database, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	database.Close()

	database, err = Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	version, err := database.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version after reopen: got %d, want %d", version, SchemaVersion)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	parsed, err := parseTimestamp(formatTimestamp(now))
	if err != nil {
		t.Fatalf("parseTimestamp failed: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("round trip: got %v, want %v", parsed, now)
	}
}

func TestParseTimestampFormats(t *testing.T) {
	cases := []string{
		"2026-08-28T10:30:00Z",
		"2026-08-28 10:30:00",
		"2026-08-28T10:30:00.123456789Z",
	}
	for _, c := range cases {
		if _, err := parseTimestamp(c); err != nil {
			t.Errorf("parseTimestamp(%q) failed: %v", c, err)
		}
	}

	if _, err := parseTimestamp("not a timestamp"); err == nil {
		t.Error("parseTimestamp should reject garbage")
	}
}
