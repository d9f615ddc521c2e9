package store

import (
	"sync"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// ItemStore is the engine's shared item metadata cache: a write-once-per-key
// map of tralbum id to item metadata. All fetch tasks share one store; it
// lives and dies with the engine instance.
//
// The mutex spans only the check-and-insert, never the metadata fetch that
// produces the candidate. Two tasks racing on a brand-new id may therefore
// each build a candidate (at most one extra tag fetch per id); exactly one
// insert wins and later reads are consistent.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]domain.Item
}

// NewItemStore creates an empty store.
func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]domain.Item)}
}

// Get returns the cached metadata for id.
func (s *ItemStore) Get(id string) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// StoreIfAbsent inserts item metadata unless the id is already present.
// It reports whether this call stored the item; only the winner should
// consider itself responsible for any enrichment already performed.
func (s *ItemStore) StoreIfAbsent(item domain.Item) bool {
	if item.ID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return false
	}
	s.items[item.ID] = item
	return true
}

// Len returns the number of cached items.
func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a snapshot of all cached items.
func (s *ItemStore) Items() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out
}
