package storage

import (
	"context"
	"testing"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func TestMemoryStore_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	created, err := store.CreateMonitor(ctx, testMonitor())
	if err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	got, err := store.GetMonitor(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if got.Name != created.Name {
		t.Fatalf("round trip mismatch")
	}
}

func TestMemoryStore_RetentionEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	m, _ := store.CreateMonitor(ctx, testMonitor())
	base := time.Now()
	for i := 0; i < 3; i++ {
		store.AppendResult(ctx, &models.CheckResult{
			ID:        string(rune('a' + i)),
			MonitorID: m.ID,
			CheckedAt: base.Add(time.Duration(i) * time.Second),
			Status:    models.StatusUp,
		})
	}

	results, err := store.ListResults(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after eviction, got %d", len(results))
	}
	if results[0].ID != "c" || results[1].ID != "b" {
		t.Fatalf("expected newest-first [c b], got [%s %s]", results[0].ID, results[1].ID)
	}
}

func TestMemoryStore_DeleteNotFound(t *testing.T) {
	store := NewMemoryStore(10)
	if err := store.DeleteMonitor(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
