package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestOpenSQLiteAndHealthCheck(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: "file:repo_test?mode=memory&cache=shared"}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(context.Background(), time.Second, logger); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if got := db.Driver.Dialect(); got != "sqlite3" {
		t.Fatalf("dialect = %q, want sqlite3", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := Open(context.Background(), Config{Driver: "oracle"}, logger); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
