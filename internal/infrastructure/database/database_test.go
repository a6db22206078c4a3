package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Path: MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "sim.db")

	db, err := Open(config.DatabaseConfig{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if _, err := db.Exec("CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if db.Path() != dbPath || db.InMemory() {
		t.Errorf("Path() = %q, InMemory() = %v", db.Path(), db.InMemory())
	}
}

func TestOpen_Memory(t *testing.T) {
	for _, path := range []string{"", MemoryPath} {
		db, err := Open(config.DatabaseConfig{Path: path})
		if err != nil {
			t.Fatalf("Open(%q) error = %v", path, err)
		}
		if !db.InMemory() {
			t.Errorf("Open(%q).InMemory() = false", path)
		}
		_ = db.Close()
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	_ = db.Close()
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() on closed database succeeded")
	}
}

func TestClose_Nil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

var testMigrations = fstest.MapFS{
	"20260101_000000_first.up.sql":    {Data: []byte("CREATE TABLE first (id TEXT PRIMARY KEY);")},
	"20260101_000000_first.down.sql":  {Data: []byte("DROP TABLE first;")},
	"20260102_000000_second.up.sql":   {Data: []byte("CREATE TABLE second (id TEXT PRIMARY KEY);")},
	"README.md":                       {Data: []byte("not a migration")},
	"20260103_000000_broken.down.sql": {Data: []byte("DROP TABLE nothing;")},
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{}
	for k, v := range testMigrations {
		if k != "20260103_000000_broken.down.sql" {
			fsys[k] = v
		}
	}

	got, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Version != "20260101_000000" || got[0].Name != "first" || got[0].DownSQL == "" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Name != "second" || got[1].DownSQL != "" {
		t.Errorf("got[1] = %+v", got[1])
	}

	if _, err := LoadMigrations(testMigrations); err == nil {
		t.Error("LoadMigrations() accepted a down file without up file")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_first.up.sql":  testMigrations["20260101_000000_first.up.sql"],
		"20260102_000000_second.up.sql": testMigrations["20260102_000000_second.up.sql"],
	}
	db := openTestDB(t)
	ctx := context.Background()

	for range 2 {
		if err := db.Migrate(ctx, fsys); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
	}
	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0] != "20260101_000000" {
		t.Errorf("AppliedVersions() = %v", versions)
	}

	var name string
	if err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='second'").Scan(&name); err != nil {
		t.Errorf("table second missing: %v", err)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		file          string
		version, name string
		up, ok        bool
	}{
		{"20260301_090000_diagnostic_events.up.sql", "20260301_090000", "diagnostic_events", true, true},
		{"20260301_090000_diagnostic_events.down.sql", "20260301_090000", "diagnostic_events", false, true},
		{"20260301_090000.up.sql", "20260301_090000", "20260301_090000", true, true},
		{"schema.sql", "", "", false, false},
		{"20260301.up.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
	}
	for _, tt := range tests {
		v, n, up, ok := parseFilename(tt.file)
		if v != tt.version || n != tt.name || up != tt.up || ok != tt.ok {
			t.Errorf("parseFilename(%q) = %q, %q, %v, %v", tt.file, v, n, up, ok)
		}
	}
}
