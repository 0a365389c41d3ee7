//go:build integration
// +build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/1broseidon/hallmonitor/internal/logging"
)

func getTestPostgresConnection() string {
	if connString := os.Getenv("POSTGRES_TEST_URL"); connString != "" {
		return connString
	}
	return "host=localhost port=5432 user=hallmonitor password=hallmonitor dbname=hallmonitor_test sslmode=disable"
}

func TestPostgresStore_CreateAndListMonitors(t *testing.T) {
	logger, _ := logging.InitLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})

	store, err := NewPostgresStore(getTestPostgresConnection(), 100, logger)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	created, err := store.CreateMonitor(ctx, testMonitor())
	if err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	got, err := store.GetMonitor(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if got.Name != created.Name {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, created)
	}

	if err := store.DeleteMonitor(ctx, created.ID); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}
}
