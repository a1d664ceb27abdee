package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/admiral-vulcan/musictolight-core/internal/infrastructure/database"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(context.Background(), db)
	if err != nil {
		t.Fatalf("NewRepository() error: %v", err)
	}
	return repo
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.Record(ctx, Event{Kind: KindPanic, Reason: "heartbeat lost", Actor: "watchdog"}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	events, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Error("ID must be generated")
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt must be stamped")
	}
	if e.Kind != KindPanic || e.Reason != "heartbeat lost" || e.Actor != "watchdog" {
		t.Errorf("round-tripped event = %+v", e)
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 22, 0, 0, 0, time.UTC)

	kinds := []EventKind{KindPanic, KindBlackoutForced, KindRecovery}
	for i, kind := range kinds {
		err := repo.Record(ctx, Event{
			ID:        string(kind),
			Kind:      kind,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record(%s) error: %v", kind, err)
		}
	}

	events, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (limit applied)", len(events))
	}
	if events[0].Kind != KindRecovery || events[1].Kind != KindBlackoutForced {
		t.Errorf("order = %s, %s; want recovery, blackout-forced", events[0].Kind, events[1].Kind)
	}
}

func TestCountByKind(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Record(ctx, Event{Kind: KindDegraded, DeviceID: "t36_spot"}); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	if err := repo.Record(ctx, Event{Kind: KindPanic}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	n, err := repo.CountByKind(ctx, KindDegraded)
	if err != nil {
		t.Fatalf("CountByKind() error: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
