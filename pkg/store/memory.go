package store

import (
	"context"
	"sort"
	"sync"

	"github.com/canvaspad/canvaspad/pkg/models"
)

// MemoryStore is an in-memory Store. It backs tests and development runs
// without a database; contents do not survive the process.
type MemoryStore struct {
	mu    sync.Mutex
	pages map[models.PageID]map[models.ComponentID]*models.Component
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages: make(map[models.PageID]map[models.ComponentID]*models.Component),
	}
}

func (s *MemoryStore) LoadComponents(ctx context.Context, pageID models.PageID) ([]*models.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.pages[pageID]
	out := make([]*models.Component, 0, len(rows))
	for _, c := range rows {
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) ListComponentIDs(ctx context.Context, pageID models.PageID) ([]models.ComponentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.pages[pageID]
	ids := make([]models.ComponentID, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) UpsertComponent(ctx context.Context, component *models.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.pages[component.PageID]
	if !ok {
		rows = make(map[models.ComponentID]*models.Component)
		s.pages[component.PageID] = rows
	}
	clone := *component
	rows[component.ID] = &clone
	return nil
}

func (s *MemoryStore) DeleteComponents(ctx context.Context, pageID models.PageID, ids []models.ComponentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.pages[pageID]
	for _, id := range ids {
		delete(rows, id)
	}
	return nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
