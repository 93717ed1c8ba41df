package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"heirloom/internal/media"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// Memory is an in-process media store for unit tests and local runs.
type Memory struct {
	mu    sync.RWMutex
	items map[id.MediaID]*media.Media
}

func NewMemory() *Memory {
	return &Memory{items: make(map[id.MediaID]*media.Media)}
}

func clone(m *media.Media) *media.Media {
	cp := *m
	if m.QuestID != nil {
		q := *m.QuestID
		cp.QuestID = &q
	}
	if m.MilestoneID != nil {
		ms := *m.MilestoneID
		cp.MilestoneID = &ms
	}
	if m.UnlockedAt != nil {
		t := *m.UnlockedAt
		cp.UnlockedAt = &t
	}
	return &cp
}

func (s *Memory) Create(_ context.Context, m *media.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[m.ID]; ok {
		return sentinel.ErrConflict
	}
	s.items[m.ID] = clone(m)
	return nil
}

func (s *Memory) Find(_ context.Context, mediaID id.MediaID) (*media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[mediaID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(m), nil
}

func (s *Memory) ListByEstate(_ context.Context, estateID id.EstateID) ([]media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []media.Media
	for _, m := range s.items {
		if m.EstateID == estateID {
			out = append(out, *clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) ListByMilestone(_ context.Context, milestoneID id.MilestoneID) ([]media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []media.Media
	for _, m := range s.items {
		if m.MilestoneID != nil && *m.MilestoneID == milestoneID {
			out = append(out, *clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) ListByQuest(_ context.Context, questID id.QuestID) ([]media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []media.Media
	for _, m := range s.items {
		if m.QuestID != nil && *m.QuestID == questID {
			out = append(out, *clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkUnlocked flips the monotonic unlock flag. Already-unlocked rows are
// left untouched so the original unlock timestamp survives.
func (s *Memory) MarkUnlocked(_ context.Context, mediaID id.MediaID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[mediaID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if m.Unlocked {
		return nil
	}
	m.Unlocked = true
	t := at
	m.UnlockedAt = &t
	return nil
}

func (s *Memory) Delete(_ context.Context, mediaID id.MediaID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[mediaID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.items, mediaID)
	return nil
}
