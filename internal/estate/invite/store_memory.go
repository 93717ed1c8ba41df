package invite

import (
	"context"
	"sync"
	"time"

	"heirloom/pkg/platform/sentinel"
)

// MemoryStore is an in-process CodeStore for unit tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	stored    StoredCode
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]memoryEntry), now: time.Now}
}

// SetClock overrides the expiry clock in tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Put(_ context.Context, inviteID string, stored StoredCode, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[inviteID] = memoryEntry{stored: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, inviteID string) (*StoredCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[inviteID]
	if !ok {
		return nil, sentinel.ErrExpired
	}
	delete(s.codes, inviteID)
	if s.now().After(entry.expiresAt) {
		return nil, sentinel.ErrExpired
	}
	stored := entry.stored
	return &stored, nil
}
