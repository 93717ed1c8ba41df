package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heirloom/internal/quest"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Memory
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemory()
}

func (s *MemoryStoreSuite) seedQuest(status quest.QuestStatus) *quest.Quest {
	q := &quest.Quest{
		ID:            id.NewQuestID(),
		EstateID:      id.NewEstateID(),
		BeneficiaryID: id.NewBeneficiaryID(),
		Title:         "graduate",
		Status:        status,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateQuest(s.ctx, q))
	return q
}

func (s *MemoryStoreSuite) seedMilestones(questID id.QuestID, n int) []quest.Milestone {
	ms := make([]quest.Milestone, 0, n)
	var total int64
	for i := 0; i < n; i++ {
		ms = append(ms, quest.Milestone{
			ID:         id.NewMilestoneID(),
			QuestID:    questID,
			OrderIndex: i,
			Title:      "step",
			Value:      100,
			Mode:       quest.VerificationModeManual,
			Status:     quest.MilestoneStatusLocked,
		})
		total += 100
	}
	s.Require().NoError(s.store.ReplaceMilestones(s.ctx, questID, ms, total))
	return ms
}

func (s *MemoryStoreSuite) TestFindQuestNotFound() {
	_, err := s.store.FindQuest(s.ctx, id.NewQuestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestCreateAndFindQuest() {
	q := s.seedQuest(quest.QuestStatusDraft)

	got, err := s.store.FindQuest(s.ctx, q.ID)
	s.Require().NoError(err)
	s.Equal(q.Title, got.Title)
	s.Equal(quest.QuestStatusDraft, got.Status)

	// Mutating the returned copy must not leak into the store.
	got.Title = "changed"
	again, err := s.store.FindQuest(s.ctx, q.ID)
	s.Require().NoError(err)
	s.Equal("graduate", again.Title)
}

func (s *MemoryStoreSuite) TestListQuestsByEstate() {
	q := s.seedQuest(quest.QuestStatusDraft)
	other := s.seedQuest(quest.QuestStatusDraft)

	listed, err := s.store.ListQuestsByEstate(s.ctx, q.EstateID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(q.ID, listed[0].ID)

	listed, err = s.store.ListQuestsByEstate(s.ctx, other.EstateID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *MemoryStoreSuite) TestUpdateQuestStatusCAS() {
	q := s.seedQuest(quest.QuestStatusDraft)

	err := s.store.UpdateQuestStatus(s.ctx, q.ID, quest.QuestStatusDraft, quest.QuestStatusActive)
	s.Require().NoError(err)

	got, err := s.store.FindQuest(s.ctx, q.ID)
	s.Require().NoError(err)
	s.Equal(quest.QuestStatusActive, got.Status)
	s.Require().NotNil(got.PublishedAt, "publish transition stamps published_at")

	// Stale expectation loses the race.
	err = s.store.UpdateQuestStatus(s.ctx, q.ID, quest.QuestStatusDraft, quest.QuestStatusArchived)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	err = s.store.UpdateQuestStatus(s.ctx, id.NewQuestID(), quest.QuestStatusDraft, quest.QuestStatusActive)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestReplaceMilestonesKeepsEvidenceForCarriedOver() {
	q := s.seedQuest(quest.QuestStatusDraft)
	ms := s.seedMilestones(q.ID, 2)

	ev := quest.Evidence{
		ID:          id.NewEvidenceID(),
		MilestoneID: ms[0].ID,
		SubmittedBy: id.NewPrincipalID(),
		Kind:        quest.EvidenceKindText,
		Text:        "done",
		SubmittedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.store.AppendEvidence(s.ctx, ev))

	// Carry over the first milestone, drop the second, add a new one.
	next := []quest.Milestone{
		ms[0],
		{
			ID:         id.NewMilestoneID(),
			QuestID:    q.ID,
			OrderIndex: 1,
			Title:      "new step",
			Value:      250,
			Mode:       quest.VerificationModeManual,
			Status:     quest.MilestoneStatusLocked,
		},
	}
	s.Require().NoError(s.store.ReplaceMilestones(s.ctx, q.ID, next, 350))

	listed, err := s.store.ListMilestones(s.ctx, q.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(ms[0].ID, listed[0].ID)
	s.Equal("new step", listed[1].Title)

	got, err := s.store.FindQuest(s.ctx, q.ID)
	s.Require().NoError(err)
	s.Equal(int64(350), got.TotalValue)

	kept, err := s.store.ListEvidence(s.ctx, ms[0].ID)
	s.Require().NoError(err)
	s.Len(kept, 1)

	dropped, err := s.store.ListEvidence(s.ctx, ms[1].ID)
	s.Require().NoError(err)
	s.Empty(dropped)
}

func (s *MemoryStoreSuite) TestTransitionMilestoneCAS() {
	q := s.seedQuest(quest.QuestStatusActive)
	ms := s.seedMilestones(q.ID, 1)

	now := time.Now().UTC()
	got, err := s.store.TransitionMilestone(s.ctx, ms[0].ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{StartedAt: &now})
	s.Require().NoError(err)
	s.Equal(quest.MilestoneStatusInProgress, got.Status)
	s.Require().NotNil(got.StartedAt)

	// Second start against the stale status fails.
	_, err = s.store.TransitionMilestone(s.ctx, ms[0].ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{StartedAt: &now})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.TransitionMilestone(s.ctx, id.NewMilestoneID(),
		quest.MilestoneStatusLocked, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestTransitionStampRejectionRoundTrip() {
	q := s.seedQuest(quest.QuestStatusActive)
	ms := s.seedMilestones(q.ID, 1)

	now := time.Now().UTC()
	trustee := id.NewTrusteeID()

	_, err := s.store.TransitionMilestone(s.ctx, ms[0].ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusPendingVerification,
		quest.TransitionStamp{SubmittedAt: &now})
	s.Require().NoError(err)

	got, err := s.store.TransitionMilestone(s.ctx, ms[0].ID,
		quest.MilestoneStatusPendingVerification, quest.MilestoneStatusRejected,
		quest.TransitionStamp{VerifiedBy: &trustee, RejectionReason: "blurry photo"})
	s.Require().NoError(err)
	s.Equal("blurry photo", got.RejectionReason)

	got, err = s.store.TransitionMilestone(s.ctx, ms[0].ID,
		quest.MilestoneStatusRejected, quest.MilestoneStatusPendingVerification,
		quest.TransitionStamp{SubmittedAt: &now, ClearRejectionReason: true})
	s.Require().NoError(err)
	s.Empty(got.RejectionReason)
}

func (s *MemoryStoreSuite) TestListPendingByEstate() {
	q := s.seedQuest(quest.QuestStatusActive)
	ms := s.seedMilestones(q.ID, 3)

	now := time.Now().UTC()
	_, err := s.store.TransitionMilestone(s.ctx, ms[1].ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusPendingVerification,
		quest.TransitionStamp{SubmittedAt: &now})
	s.Require().NoError(err)

	s.Require().NoError(s.store.AppendEvidence(s.ctx, quest.Evidence{
		ID:          id.NewEvidenceID(),
		MilestoneID: ms[1].ID,
		SubmittedBy: id.NewPrincipalID(),
		Kind:        quest.EvidenceKindLink,
		Text:        "https://registrar.example/transcript",
		SubmittedAt: now,
	}))

	pending, err := s.store.ListPendingByEstate(s.ctx, q.EstateID)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(q.ID, pending[0].Quest.ID)
	s.Equal(ms[1].ID, pending[0].Milestone.ID)
	s.Require().Len(pending[0].Evidence, 1)
	s.Equal(quest.EvidenceKindLink, pending[0].Evidence[0].Kind)

	other, err := s.store.ListPendingByEstate(s.ctx, id.NewEstateID())
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *MemoryStoreSuite) TestEvidenceOrderingPreserved() {
	q := s.seedQuest(quest.QuestStatusActive)
	ms := s.seedMilestones(q.ID, 1)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.AppendEvidence(s.ctx, quest.Evidence{
			ID:          id.NewEvidenceID(),
			MilestoneID: ms[0].ID,
			SubmittedBy: id.NewPrincipalID(),
			Kind:        quest.EvidenceKindText,
			Text:        "attempt",
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	listed, err := s.store.ListEvidence(s.ctx, ms[0].ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.True(listed[0].SubmittedAt.Before(listed[2].SubmittedAt))
}
