package diagnostic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sim/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_FillsIDAndTime(t *testing.T) {
	repo := newTestRepo(t)
	e := &Event{Action: ActionPlug, EntityType: EntityDevice, EntityID: "LED000000001", Source: "registry"}

	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(e.ID, "evt-") || len(e.ID) != len("evt-")+8 {
		t.Errorf("ID = %q, want evt-<8 chars>", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []Event{
		{Action: ActionPlug, EntityType: EntityDevice, EntityID: "A", CreatedAt: base},
		{Action: ActionPlug, EntityType: EntityDevice, EntityID: "B", CreatedAt: base.Add(time.Second)},
		{Action: ActionCreateGroup, EntityType: EntityGroup, EntityID: "1", CreatedAt: base.Add(2 * time.Second),
			Details: map[string]any{"members": float64(2)}},
	}
	for i := range events {
		events[i].Source = "test"
		if err := repo.Create(ctx, &events[i]); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || page.Limit != defaultLimit {
		t.Errorf("Total = %d, Limit = %d", page.Total, page.Limit)
	}
	if page.Events[0].EntityID != "1" || page.Events[2].EntityID != "A" {
		t.Errorf("order = %s, %s, %s; want newest first", page.Events[0].EntityID, page.Events[1].EntityID, page.Events[2].EntityID)
	}
	if page.Events[0].Details["members"] != float64(2) {
		t.Errorf("details = %v", page.Events[0].Details)
	}

	page, err = repo.List(ctx, Filter{Action: ActionPlug, EntityID: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Events[0].EntityID != "B" {
		t.Errorf("filtered page = %+v", page)
	}

	page, _ = repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if len(page.Events) != 1 || page.Events[0].EntityID != "B" || page.Total != 3 {
		t.Errorf("paged = %+v", page)
	}
}

func TestFilter_Normalised(t *testing.T) {
	tests := []struct {
		in        Filter
		wantLimit int
		wantOff   int
	}{
		{Filter{}, 50, 0},
		{Filter{Limit: 500}, 200, 0},
		{Filter{Limit: 10, Offset: -4}, 10, 0},
	}
	for _, tt := range tests {
		got := tt.in.normalised()
		if got.Limit != tt.wantLimit || got.Offset != tt.wantOff {
			t.Errorf("normalised(%+v) = %+v", tt.in, got)
		}
	}
}

type failingRepo struct{ calls int }

func (f *failingRepo) Create(context.Context, *Event) error {
	f.calls++
	return errors.New("disk full")
}

func (f *failingRepo) List(context.Context, Filter) (*Page, error) {
	return nil, errors.New("disk full")
}

func TestRecorder(t *testing.T) {
	var nilRec *Recorder
	nilRec.Record(context.Background(), ActionPlug, EntityDevice, "X", nil)
	if evs, err := nilRec.Recent(context.Background(), 5); err != nil || len(evs) != 0 {
		t.Errorf("nil Recent() = %v, %v", evs, err)
	}

	fr := &failingRepo{}
	rec := NewRecorder(fr, "registry", nil)
	rec.Record(context.Background(), ActionPlug, EntityDevice, "X", nil)
	if fr.calls != 1 {
		t.Errorf("Create calls = %d, want 1", fr.calls)
	}

	repo := newTestRepo(t)
	rec = NewRecorder(repo, "registry", nil)
	rec.Record(context.Background(), ActionUnplug, EntityDevice, "LED000000001", map[string]any{"kind": "led"})
	evs, err := rec.Recent(context.Background(), 10)
	if err != nil || len(evs) != 1 || evs[0].Source != "registry" {
		t.Errorf("Recent() = %+v, %v", evs, err)
	}
}
