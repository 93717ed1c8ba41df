package media

import (
	"context"
	"time"

	"heirloom/internal/audit"
	"heirloom/internal/quest"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// Store is the persistence surface the gate and service need.
type Store interface {
	Create(ctx context.Context, m *Media) error
	Find(ctx context.Context, mediaID id.MediaID) (*Media, error)
	ListByEstate(ctx context.Context, estateID id.EstateID) ([]Media, error)
	ListByMilestone(ctx context.Context, milestoneID id.MilestoneID) ([]Media, error)
	ListByQuest(ctx context.Context, questID id.QuestID) ([]Media, error)
	MarkUnlocked(ctx context.Context, mediaID id.MediaID, at time.Time) error
	Delete(ctx context.Context, mediaID id.MediaID) error
}

// MilestoneReader resolves a quest's milestone set for the quest-complete
// condition check.
type MilestoneReader interface {
	ListMilestones(ctx context.Context, questID id.QuestID) ([]quest.Milestone, error)
}

// Gate reacts to milestone completion by flipping the visibility of bound
// media. It is the only writer of the unlock fields besides manual unlock.
type Gate struct {
	store      Store
	milestones MilestoneReader
	audit      *audit.Publisher
}

func NewGate(store Store, milestones MilestoneReader, auditor *audit.Publisher) *Gate {
	return &Gate{store: store, milestones: milestones, audit: auditor}
}

// OnMilestoneCompleted unlocks milestone-bound media and, when the owning
// quest has no unresolved milestones left, quest-bound media as well.
// Runs inside the approval's transaction; an unlock that cannot be recorded
// fails the whole approval.
func (g *Gate) OnMilestoneCompleted(ctx context.Context, estateID id.EstateID, questID id.QuestID, milestoneID id.MilestoneID, at time.Time) ([]id.MediaID, error) {
	bound, err := g.store.ListByMilestone(ctx, milestoneID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list milestone media", err)
	}

	var unlocked []id.MediaID
	for i := range bound {
		m := &bound[i]
		if m.Condition != UnlockMilestoneComplete || m.Unlocked {
			continue
		}
		if err := g.unlock(ctx, m, estateID, at); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, m.ID)
	}

	ms, err := g.milestones.ListMilestones(ctx, questID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list quest milestones", err)
	}
	if !quest.AllCompleted(ms) {
		return unlocked, nil
	}

	questBound, err := g.store.ListByQuest(ctx, questID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list quest media", err)
	}
	for i := range questBound {
		m := &questBound[i]
		if m.Condition != UnlockQuestComplete || m.Unlocked {
			continue
		}
		if err := g.unlock(ctx, m, estateID, at); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, m.ID)
	}
	return unlocked, nil
}

func (g *Gate) unlock(ctx context.Context, m *Media, estateID id.EstateID, at time.Time) error {
	if err := g.store.MarkUnlocked(ctx, m.ID, at); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "unlock media", err)
	}
	mediaID := m.ID
	return g.audit.Record(ctx, audit.Entry{
		Action: audit.ActionMediaUnlocked,
		Refs:   audit.EntityRefs{EstateID: estateID, QuestID: m.QuestID, MilestoneID: m.MilestoneID, MediaID: &mediaID},
		Before: map[string]any{"unlocked": false},
		After:  map[string]any{"unlocked": true, "condition": string(m.Condition)},
	})
}
