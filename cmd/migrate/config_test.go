package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sefaria/internal/kvstore"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr error
	}{
		{dsn: "sqlite://data/sefaria.db", want: "sqlite3"},
		{dsn: "postgres://u:p@localhost:5432/sefaria", want: "postgres"},
		{dsn: "postgresql://localhost/sefaria", want: "postgres"},
		{dsn: "memory://", wantErr: errNoSchema},
		{dsn: "redis://localhost:6379/0", wantErr: errNoSchema},
		{dsn: "mysql://localhost/sefaria", wantErr: kvstore.ErrUnsupportedDSN},
	}
	for _, tt := range tests {
		got, err := dialectFor(tt.dsn)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("dialectFor(%q): expected %v, got %v", tt.dsn, tt.wantErr, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("dialectFor(%q) = %q, %v; want %q", tt.dsn, got, err, tt.want)
		}
	}
}

func TestMigrate_SQLiteUpDown(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "kv.db")
	db, closeDB, err := openDB(context.Background(), dsn, "sqlite3")
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	t.Cleanup(closeDB)

	if err := kvstore.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := db.Exec("INSERT INTO kv_entries (key, value) VALUES ('k', '1')"); err != nil {
		t.Fatalf("expected kv_entries after up: %v", err)
	}
	if err := kvstore.Rollback(db, "sqlite3"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, err := db.Exec("SELECT 1 FROM kv_entries"); err == nil {
		t.Fatal("expected kv_entries to be dropped after down")
	}
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, ".env")

	if err := os.WriteFile(p, []byte("SEFARIA_STORAGE_DSN=from_file\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("SEFARIA_STORAGE_DSN", "from_env")

	cwd, _ := os.Getwd()
	_ = os.Chdir(tmp)
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	loadEnvFiles()

	if got := os.Getenv("SEFARIA_STORAGE_DSN"); got != "from_env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}
