package database

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"medbook/config"
)

func TestConnString(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "db",
		Port:     "5432",
		Username: "med",
		Password: "p@ss/word",
		DBName:   "medbook",
		SSLMode:  "disable",
	}

	got := ConnString(cfg)
	want := "postgres://med:p%40ss%2Fword@db:5432/medbook?sslmode=disable"
	if got != want {
		t.Errorf("ConnString = %s, want %s", got, want)
	}
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_slots.sql", "001_init.sql", "bad.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := ListMigrations(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[0].Name != "init" {
		t.Errorf("unexpected first migration %+v", migrations[0])
	}
	if migrations[1].Version != "002" || migrations[1].Name != "slots" {
		t.Errorf("unexpected second migration %+v", migrations[1])
	}
}

func TestListMigrations_MissingDir(t *testing.T) {
	if _, err := ListMigrations(filepath.Join(t.TempDir(), "nope"), zap.NewNop()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
