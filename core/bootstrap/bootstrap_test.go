package bootstrap

import (
	"errors"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/autoorder/core/config"
	coredatabase "github.com/m3rciful/autoorder/core/database"
)

func TestRunWiresPipelineInOrder(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var steps []string
	res, err := Run(Options{
		Config:   coreconfig.Default(),
		Database: coredatabase.Config{Path: ":memory:"},
		LoggerInit: func(*coreconfig.Config) error {
			steps = append(steps, "logger")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return db, nil
		},
		Migrate: func(coredatabase.Config) error {
			steps = append(steps, "migrate")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != db {
		t.Fatal("expected the connected handle to be returned")
	}
	if got := strings.Join(steps, ","); got != "logger,connect,migrate" {
		t.Fatalf("unexpected pipeline order: %s", got)
	}
}

func TestRunRejectsNilConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunClosesDBWhenMigrationsFail(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err = Run(Options{
		Config:     coreconfig.Default(),
		Database:   coredatabase.Config{Path: ":memory:"},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return db, nil },
		Migrate: func(coredatabase.Config) error {
			return errors.New("schema out of date")
		},
	})
	if err == nil || !strings.Contains(err.Error(), "migrations failed") {
		t.Fatalf("expected migration failure, got %v", err)
	}
	if pingErr := db.Ping(); pingErr == nil {
		t.Fatal("expected the handle to be closed after failed migrations")
	}
}
