// Package store provides the quest/milestone/evidence stores. The memory
// implementation backs unit tests and mirrors the postgres conditional
// writes under a mutex so concurrency semantics match.
package store

import (
	"context"
	"sort"
	"sync"

	"heirloom/internal/quest"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

// Memory is the in-memory quest store.
type Memory struct {
	mu         sync.Mutex
	quests     map[id.QuestID]*quest.Quest
	milestones map[id.MilestoneID]*quest.Milestone
	evidence   map[id.MilestoneID][]quest.Evidence
}

func NewMemory() *Memory {
	return &Memory{
		quests:     make(map[id.QuestID]*quest.Quest),
		milestones: make(map[id.MilestoneID]*quest.Milestone),
		evidence:   make(map[id.MilestoneID][]quest.Evidence),
	}
}

func cloneQuest(q *quest.Quest) *quest.Quest {
	out := *q
	if q.PublishedAt != nil {
		t := *q.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}

func cloneMilestone(m *quest.Milestone) *quest.Milestone {
	out := *m
	out.Prerequisites = append([]id.MilestoneID(nil), m.Prerequisites...)
	if m.StartedAt != nil {
		t := *m.StartedAt
		out.StartedAt = &t
	}
	if m.SubmittedAt != nil {
		t := *m.SubmittedAt
		out.SubmittedAt = &t
	}
	if m.VerifiedAt != nil {
		t := *m.VerifiedAt
		out.VerifiedAt = &t
	}
	if m.VerifiedBy != nil {
		v := *m.VerifiedBy
		out.VerifiedBy = &v
	}
	return &out
}

func (s *Memory) CreateQuest(_ context.Context, q *quest.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.quests[q.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.quests[q.ID] = cloneQuest(q)
	return nil
}

func (s *Memory) FindQuest(_ context.Context, questID id.QuestID) (*quest.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quests[questID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneQuest(q), nil
}

func (s *Memory) ListQuestsByEstate(_ context.Context, estateID id.EstateID) ([]quest.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []quest.Quest
	for _, q := range s.quests {
		if q.EstateID == estateID {
			out = append(out, *cloneQuest(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateQuestStatus performs a compare-and-swap on the quest lifecycle.
func (s *Memory) UpdateQuestStatus(ctx context.Context, questID id.QuestID, from, to quest.QuestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quests[questID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if q.Status != from {
		return sentinel.ErrConflict
	}
	now := requestcontext.Now(ctx)
	q.Status = to
	q.UpdatedAt = now
	if to == quest.QuestStatusActive && q.PublishedAt == nil {
		q.PublishedAt = &now
	}
	return nil
}

// ReplaceMilestones atomically swaps the quest's milestone set and persists
// the recomputed total. Evidence attached to carried-over milestone IDs
// survives; evidence of dropped milestones goes with them.
func (s *Memory) ReplaceMilestones(ctx context.Context, questID id.QuestID, ms []quest.Milestone, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quests[questID]
	if !ok {
		return sentinel.ErrNotFound
	}

	kept := make(map[id.MilestoneID]bool, len(ms))
	for i := range ms {
		kept[ms[i].ID] = true
	}
	for mid, m := range s.milestones {
		if m.QuestID != questID {
			continue
		}
		delete(s.milestones, mid)
		if !kept[mid] {
			delete(s.evidence, mid)
		}
	}
	for i := range ms {
		m := ms[i]
		m.QuestID = questID
		s.milestones[m.ID] = cloneMilestone(&m)
	}
	q.TotalValue = total
	q.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *Memory) ListMilestones(_ context.Context, questID id.QuestID) ([]quest.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMilestonesLocked(questID), nil
}

func (s *Memory) listMilestonesLocked(questID id.QuestID) []quest.Milestone {
	var out []quest.Milestone
	for _, m := range s.milestones {
		if m.QuestID == questID {
			out = append(out, *cloneMilestone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

func (s *Memory) FindMilestone(_ context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[milestoneID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneMilestone(m), nil
}

// TransitionMilestone is the optimistic-concurrency write every state
// machine transition goes through: the update applies only when the stored
// status still equals from, otherwise ErrConflict surfaces the lost race.
func (s *Memory) TransitionMilestone(_ context.Context, milestoneID id.MilestoneID, from, to quest.MilestoneStatus, stamp quest.TransitionStamp) (*quest.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[milestoneID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if m.Status != from {
		return nil, sentinel.ErrConflict
	}
	m.Status = to
	if stamp.StartedAt != nil {
		m.StartedAt = stamp.StartedAt
	}
	if stamp.SubmittedAt != nil {
		m.SubmittedAt = stamp.SubmittedAt
	}
	if stamp.VerifiedAt != nil {
		m.VerifiedAt = stamp.VerifiedAt
	}
	if stamp.VerifiedBy != nil {
		m.VerifiedBy = stamp.VerifiedBy
	}
	if stamp.RejectionReason != "" {
		m.RejectionReason = stamp.RejectionReason
	}
	if stamp.ClearRejectionReason {
		m.RejectionReason = ""
	}
	return cloneMilestone(m), nil
}

func (s *Memory) AppendEvidence(_ context.Context, ev quest.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.milestones[ev.MilestoneID]; !ok {
		return sentinel.ErrNotFound
	}
	s.evidence[ev.MilestoneID] = append(s.evidence[ev.MilestoneID], ev)
	return nil
}

func (s *Memory) ListEvidence(_ context.Context, milestoneID id.MilestoneID) ([]quest.Evidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]quest.Evidence, len(s.evidence[milestoneID]))
	copy(out, s.evidence[milestoneID])
	return out, nil
}

// ListPendingByEstate returns every milestone awaiting verification across
// the estate's quests, with its evidence history.
func (s *Memory) ListPendingByEstate(_ context.Context, estateID id.EstateID) ([]quest.PendingReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []quest.PendingReview
	for _, q := range s.quests {
		if q.EstateID != estateID {
			continue
		}
		for _, m := range s.listMilestonesLocked(q.ID) {
			if m.Status != quest.MilestoneStatusPendingVerification {
				continue
			}
			evidence := make([]quest.Evidence, len(s.evidence[m.ID]))
			copy(evidence, s.evidence[m.ID])
			out = append(out, quest.PendingReview{Quest: *cloneQuest(q), Milestone: m, Evidence: evidence})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quest.ID != out[j].Quest.ID {
			return out[i].Quest.CreatedAt.Before(out[j].Quest.CreatedAt)
		}
		return out[i].Milestone.OrderIndex < out[j].Milestone.OrderIndex
	})
	return out, nil
}
