package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/kv"
	"github.com/hammamikhairi/basil/internal/logger"
)

func stores(t *testing.T) map[string]domain.HistoryStore {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	badger, err := kv.OpenBadger(kv.BadgerOptions{InMemory: true, Log: log})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { badger.Close() })

	return map[string]domain.HistoryStore{
		"memory":    NewMemoryStore(log),
		"kv-memory": NewKVStore(kv.NewMemory(), log),
		"kv-badger": NewKVStore(badger, log),
	}
}

func record(id string, ended time.Time, outcome domain.CookOutcome) *domain.CookRecord {
	return &domain.CookRecord{
		ID:           id,
		SessionID:    "sess-" + id,
		RecipeID:     "soft-boiled-eggs",
		RecipeTitle:  "Soft Boiled Eggs",
		StartedAt:    ended.Add(-10 * time.Minute),
		EndedAt:      ended,
		StepsVisited: 3,
		StepCount:    3,
		Outcome:      outcome,
	}
}

func TestHistoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := record("r1", now, domain.OutcomeCompleted)
			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("save: %v", err)
			}

			loaded, err := store.Load(ctx, "r1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.RecipeTitle != rec.RecipeTitle || loaded.Outcome != rec.Outcome {
				t.Fatalf("loaded %+v, want %+v", loaded, rec)
			}
			if !loaded.EndedAt.Equal(rec.EndedAt) {
				t.Fatalf("ended at %v, want %v", loaded.EndedAt, rec.EndedAt)
			}
			if loaded.Elapsed() != 10*time.Minute {
				t.Fatalf("elapsed %v, want 10m", loaded.Elapsed())
			}

			if err := store.Save(ctx, rec); !errors.Is(err, domain.ErrAlreadyExists) {
				t.Fatalf("second save: expected ErrAlreadyExists, got %v", err)
			}
			if _, err := store.Load(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestHistoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i, id := range []string{"a", "b", "c"} {
				outcome := domain.OutcomeCompleted
				if i == 1 {
					outcome = domain.OutcomeAbandoned
				}
				if err := store.Save(ctx, record(id, base.Add(time.Duration(i)*time.Minute), outcome)); err != nil {
					t.Fatalf("save %s: %v", id, err)
				}
			}

			list, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 3 {
				t.Fatalf("expected 3 records, got %d", len(list))
			}
			want := []string{"c", "b", "a"}
			for i, rec := range list {
				if rec.ID != want[i] {
					t.Fatalf("position %d: got %s, want %s", i, rec.ID, want[i])
				}
			}
			if list[1].Outcome != domain.OutcomeAbandoned {
				t.Fatalf("expected b abandoned, got %s", list[1].Outcome)
			}
		})
	}
}

func TestKVStoreSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	log := logger.New(logger.LevelOff, nil)
	backing := kv.NewMemory()
	store := NewKVStore(backing, log)

	if err := store.Save(ctx, record("good", time.Now(), domain.OutcomeCompleted)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := backing.Set(ctx, historyPrefix+"bad", []byte{0xc1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Fatalf("expected only the good record, got %d", len(list))
	}
}
