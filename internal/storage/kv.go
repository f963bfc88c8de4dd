package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/kv"
	"github.com/hammamikhairi/basil/internal/logger"
)

var _ domain.HistoryStore = (*KVStore)(nil)

const historyPrefix = "history:"

// KVStore keeps msgpack-encoded history records in a kv.Store.
type KVStore struct {
	store kv.Store
	log   *logger.Logger
}

// NewKVStore wraps store.
func NewKVStore(store kv.Store, log *logger.Logger) *KVStore {
	return &KVStore{store: store, log: log}
}

// Save stores a record. Records are write-once.
func (s *KVStore) Save(ctx context.Context, rec *domain.CookRecord) error {
	key := historyPrefix + rec.ID
	_, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrAlreadyExists)
	case !errors.Is(err, kv.ErrNotFound):
		return fmt.Errorf("checking record %s: %w", rec.ID, err)
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.ID, err)
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.ID, err)
	}
	s.log.Debug("saved record %s (recipe=%s, outcome=%s, %d bytes)", rec.ID, rec.RecipeID, rec.Outcome, len(data))
	return nil
}

// Load retrieves a record by ID.
func (s *KVStore) Load(ctx context.Context, id string) (*domain.CookRecord, error) {
	data, err := s.store.Get(ctx, historyPrefix+id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return decodeRecord(data)
}

// List returns every record, newest first. Undecodable entries are
// skipped with a warning.
func (s *KVStore) List(ctx context.Context) ([]*domain.CookRecord, error) {
	entries, err := s.store.List(ctx, historyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	out := make([]*domain.CookRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := decodeRecord(e.Value)
		if err != nil {
			s.log.Warn("history: skipping %s: %v", e.Key, err)
			continue
		}
		out = append(out, rec)
	}
	newestFirst(out)
	return out, nil
}

func decodeRecord(data []byte) (*domain.CookRecord, error) {
	var rec domain.CookRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}
