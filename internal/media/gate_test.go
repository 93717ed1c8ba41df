package media_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/audit"
	auditmem "heirloom/internal/audit/store/memory"
	"heirloom/internal/media"
	mediastore "heirloom/internal/media/store"
	"heirloom/internal/quest"
	queststore "heirloom/internal/quest/store"
	id "heirloom/pkg/domain"
)

type gateFixture struct {
	gate       *media.Gate
	media      *mediastore.Memory
	quests     *queststore.Memory
	auditStore *auditmem.Store
	estateID   id.EstateID
	quest      *quest.Quest
	milestones []quest.Milestone
}

func newGateFixture(t *testing.T, milestoneCount int) *gateFixture {
	t.Helper()
	f := &gateFixture{
		media:      mediastore.NewMemory(),
		quests:     queststore.NewMemory(),
		auditStore: auditmem.New(),
		estateID:   id.NewEstateID(),
	}
	f.gate = media.NewGate(f.media, f.quests, audit.NewPublisher(f.auditStore))

	ctx := context.Background()
	f.quest = &quest.Quest{
		ID:            id.NewQuestID(),
		EstateID:      f.estateID,
		BeneficiaryID: id.NewBeneficiaryID(),
		Title:         "graduate",
		Status:        quest.QuestStatusActive,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.quests.CreateQuest(ctx, f.quest))

	var total int64
	for i := 0; i < milestoneCount; i++ {
		f.milestones = append(f.milestones, quest.Milestone{
			ID:         id.NewMilestoneID(),
			QuestID:    f.quest.ID,
			OrderIndex: i,
			Title:      "step",
			Value:      100,
			Mode:       quest.VerificationModeManual,
			Status:     quest.MilestoneStatusLocked,
		})
		total += 100
	}
	require.NoError(t, f.quests.ReplaceMilestones(ctx, f.quest.ID, f.milestones, total))
	return f
}

func (f *gateFixture) complete(t *testing.T, ms quest.Milestone) {
	t.Helper()
	now := time.Now().UTC()
	_, err := f.quests.TransitionMilestone(context.Background(), ms.ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusCompleted,
		quest.TransitionStamp{VerifiedAt: &now})
	require.NoError(t, err)
}

func (f *gateFixture) addMedia(t *testing.T, condition media.UnlockCondition, milestoneID *id.MilestoneID) *media.Media {
	t.Helper()
	m := &media.Media{
		ID:          id.NewMediaID(),
		EstateID:    f.estateID,
		QuestID:     &f.quest.ID,
		MilestoneID: milestoneID,
		Title:       "letter from dad",
		Kind:        media.KindLetter,
		StorageRef:  "blob://letters/1",
		Condition:   condition,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.media.Create(context.Background(), m))
	return m
}

func TestGateUnlocksMilestoneBoundMedia(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t, 2)
	m := f.addMedia(t, media.UnlockMilestoneComplete, &f.milestones[0].ID)

	// Before completion the projection must carry no storage reference.
	got, err := f.media.Find(ctx, m.ID)
	require.NoError(t, err)
	proj := media.ProjectForViewer(got, id.RoleBeneficiary, "step")
	assert.False(t, proj.Unlocked)
	assert.Empty(t, proj.StorageRef)
	assert.Empty(t, proj.ThumbnailRef)

	f.complete(t, f.milestones[0])
	unlocked, err := f.gate.OnMilestoneCompleted(ctx, f.estateID, f.quest.ID, f.milestones[0].ID, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, []id.MediaID{m.ID}, unlocked)

	got, err = f.media.Find(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, got.Unlocked)
	require.NotNil(t, got.UnlockedAt)

	proj = media.ProjectForViewer(got, id.RoleBeneficiary, "step")
	assert.True(t, proj.Unlocked)
	assert.Equal(t, "blob://letters/1", proj.StorageRef)

	entries := f.auditStore.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionMediaUnlocked, entries[0].Action)
}

func TestGateHoldsQuestCompleteMediaUntilAllDone(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t, 2)
	m := f.addMedia(t, media.UnlockQuestComplete, nil)

	f.complete(t, f.milestones[0])
	unlocked, err := f.gate.OnMilestoneCompleted(ctx, f.estateID, f.quest.ID, f.milestones[0].ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	got, err := f.media.Find(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Unlocked)

	f.complete(t, f.milestones[1])
	unlocked, err = f.gate.OnMilestoneCompleted(ctx, f.estateID, f.quest.ID, f.milestones[1].ID, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, []id.MediaID{m.ID}, unlocked)
}

func TestGateIgnoresManualAndImmediateConditions(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t, 1)
	manual := f.addMedia(t, media.UnlockManual, &f.milestones[0].ID)

	f.complete(t, f.milestones[0])
	unlocked, err := f.gate.OnMilestoneCompleted(ctx, f.estateID, f.quest.ID, f.milestones[0].ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	got, err := f.media.Find(ctx, manual.ID)
	require.NoError(t, err)
	assert.False(t, got.Unlocked)
}

func TestUnlockIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newGateFixture(t, 1)
	m := f.addMedia(t, media.UnlockMilestoneComplete, &f.milestones[0].ID)

	first := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.media.MarkUnlocked(ctx, m.ID, first))

	// A second flip keeps the original timestamp.
	require.NoError(t, f.media.MarkUnlocked(ctx, m.ID, time.Now().UTC()))

	got, err := f.media.Find(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, got.Unlocked)
	assert.True(t, got.UnlockedAt.Equal(first))
}

func TestBenefactorSeesLockedReferences(t *testing.T) {
	f := newGateFixture(t, 1)
	m := f.addMedia(t, media.UnlockMilestoneComplete, &f.milestones[0].ID)

	proj := media.ProjectForViewer(m, id.RoleBenefactor, "step")
	assert.False(t, proj.Unlocked)
	assert.Equal(t, "blob://letters/1", proj.StorageRef)

	proj = media.ProjectForViewer(m, id.RoleTrustee, "step")
	assert.Empty(t, proj.StorageRef)
}
