// Package storage provides cook history persistence implementations.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ domain.HistoryStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory history store. Safe for concurrent access.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.CookRecord
	log     *logger.Logger
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.CookRecord),
		log:     log,
	}
}

// Save stores a record. Records are write-once.
func (s *MemoryStore) Save(ctx context.Context, rec *domain.CookRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrAlreadyExists)
	}
	cp := *rec
	s.records[rec.ID] = &cp
	s.log.Debug("saved record %s (recipe=%s, outcome=%s)", rec.ID, rec.RecipeID, rec.Outcome)
	return nil
}

// Load retrieves a record by ID.
func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.CookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		s.log.Debug("record not found: %s", id)
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns every record, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*domain.CookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.CookRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	newestFirst(out)
	s.log.Debug("listing history, count=%d", len(out))
	return out, nil
}

func newestFirst(recs []*domain.CookRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].EndedAt.Equal(recs[j].EndedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].EndedAt.After(recs[j].EndedAt)
	})
}
