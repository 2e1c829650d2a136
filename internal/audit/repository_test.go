package audit

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/venuetone/fleet-core/migrations" // register embedded schema

	"github.com/venuetone/fleet-core/internal/infrastructure/database"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := &Entry{
		Action:   ActionCommand,
		DeviceID: "dev-1",
		Actor:    "operator@org-1",
		Source:   SourceAPI,
		Details:  map[string]any{"type": "setVolume", "volume": 40.0},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("ID was not generated")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt was not stamped")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List() total = %d, entries = %d, want 1/1", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.Action != ActionCommand {
		t.Errorf("Action = %q, want %q", got.Action, ActionCommand)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", got.DeviceID)
	}
	if got.Details["type"] != "setVolume" {
		t.Errorf("Details[type] = %v, want setVolume", got.Details["type"])
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []Entry{
		{Action: ActionRegister, DeviceID: "dev-1", Source: SourceAPI},
		{Action: ActionPair, DeviceID: "dev-1", Source: SourceDeviceLink},
		{Action: ActionCommand, DeviceID: "dev-2", Source: SourceAPI},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	t.Run("by action", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Action: ActionPair})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 1 || result.Entries[0].Action != ActionPair {
			t.Errorf("filter by action returned %d entries", result.Total)
		}
	})

	t.Run("by device", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{DeviceID: "dev-1"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 2 {
			t.Errorf("filter by device total = %d, want 2", result.Total)
		}
	})

	t.Run("pagination clamps and offsets", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 3 {
			t.Errorf("Total = %d, want 3", result.Total)
		}
		if len(result.Entries) != 1 {
			t.Errorf("page length = %d, want 1", len(result.Entries))
		}

		clamped, err := repo.List(ctx, Filter{Limit: 10000})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if clamped.Limit != 200 {
			t.Errorf("Limit = %d, want clamped to 200", clamped.Limit)
		}
	})
}

func TestSQLiteRepository_EmptyListIsNotNil(t *testing.T) {
	repo := newTestRepo(t)

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Entries == nil {
		t.Error("Entries = nil, want empty slice")
	}
}
