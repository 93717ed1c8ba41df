// Package memory provides the in-memory audit sink used by unit tests and
// early wiring.
package memory

import (
	"context"
	"sync"

	"heirloom/internal/audit"
	id "heirloom/pkg/domain"
)

// Store keeps audit entries in insertion order.
type Store struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Store) ListByEstate(_ context.Context, estateID id.EstateID) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Refs.EstateID == estateID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every recorded entry; test helper.
func (s *Store) All() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
