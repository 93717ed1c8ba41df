//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heirloom/internal/estate"
	estatestore "heirloom/internal/estate/store"
	"heirloom/internal/quest"
	"heirloom/internal/quest/store"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/platform/tx"
	"heirloom/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	estates  *estatestore.Postgres
	runner   *tx.SQLRunner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.estates = estatestore.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateAll(ctx)
	s.Require().NoError(err)
}

// seedEstate satisfies the quest table's foreign keys.
func (s *PostgresStoreSuite) seedEstate() (id.EstateID, id.BeneficiaryID) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	est := &estate.Estate{
		ID:        id.NewEstateID(),
		OwnerID:   id.NewPrincipalID(),
		Name:      "Test Estate",
		Status:    estate.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.estates.CreateEstate(ctx, est))

	ben := &estate.Beneficiary{
		ID:          id.NewBeneficiaryID(),
		EstateID:    est.ID,
		DisplayName: "Test Beneficiary",
		Email:       "beneficiary@example.com",
		Invitation:  estate.InvitationAccepted,
		CreatedAt:   now,
	}
	s.Require().NoError(s.estates.CreateBeneficiary(ctx, ben))

	return est.ID, ben.ID
}

func (s *PostgresStoreSuite) seedQuest(estateID id.EstateID, benID id.BeneficiaryID) *quest.Quest {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	q := &quest.Quest{
		ID:            id.NewQuestID(),
		EstateID:      estateID,
		BeneficiaryID: benID,
		Title:         "Graduate",
		Description:   "Finish the degree",
		Status:        quest.QuestStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.store.CreateQuest(ctx, q))
	return q
}

func makeMilestone(questID id.QuestID, idx int, value int64, prereqs ...id.MilestoneID) quest.Milestone {
	return quest.Milestone{
		ID:            id.NewMilestoneID(),
		QuestID:       questID,
		OrderIndex:    idx,
		Title:         "Milestone",
		Type:          "achievement",
		Value:         value,
		Mode:          quest.VerificationModeManual,
		Status:        quest.MilestoneStatusLocked,
		Prerequisites: prereqs,
	}
}

func (s *PostgresStoreSuite) replace(questID id.QuestID, ms []quest.Milestone) {
	ctx := context.Background()
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		return s.store.ReplaceMilestones(ctx, questID, ms, quest.TotalValue(ms))
	})
	s.Require().NoError(err)
}

// TestQuestRoundTrip verifies a quest survives insert and read back intact.
func (s *PostgresStoreSuite) TestQuestRoundTrip() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	found, err := s.store.FindQuest(ctx, q.ID)
	s.Require().NoError(err)
	s.Equal(q.Title, found.Title)
	s.Equal(q.BeneficiaryID, found.BeneficiaryID)
	s.Equal(quest.QuestStatusDraft, found.Status)
	s.Nil(found.PublishedAt)

	listed, err := s.store.ListQuestsByEstate(ctx, estateID)
	s.Require().NoError(err)
	s.Len(listed, 1)
	s.Equal(q.ID, listed[0].ID)
}

// TestFindQuestMissing verifies the not-found sentinel.
func (s *PostgresStoreSuite) TestFindQuestMissing() {
	ctx := context.Background()
	_, err := s.store.FindQuest(ctx, id.NewQuestID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestQuestStatusCAS verifies the quest lifecycle compare-and-swap: a stale
// expected status is a conflict, a missing quest stays not-found, and the
// first activation stamps published_at exactly once.
func (s *PostgresStoreSuite) TestQuestStatusCAS() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	err := s.store.UpdateQuestStatus(ctx, q.ID, quest.QuestStatusDraft, quest.QuestStatusActive)
	s.Require().NoError(err)

	found, err := s.store.FindQuest(ctx, q.ID)
	s.Require().NoError(err)
	s.Equal(quest.QuestStatusActive, found.Status)
	s.Require().NotNil(found.PublishedAt)
	firstPublish := *found.PublishedAt

	// Stale expectation loses the race.
	err = s.store.UpdateQuestStatus(ctx, q.ID, quest.QuestStatusDraft, quest.QuestStatusActive)
	s.ErrorIs(err, sentinel.ErrConflict)

	// Pause then resume; published_at must not move.
	s.Require().NoError(s.store.UpdateQuestStatus(ctx, q.ID, quest.QuestStatusActive, quest.QuestStatusPaused))
	s.Require().NoError(s.store.UpdateQuestStatus(ctx, q.ID, quest.QuestStatusPaused, quest.QuestStatusActive))

	found, err = s.store.FindQuest(ctx, q.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.PublishedAt)
	s.WithinDuration(firstPublish, *found.PublishedAt, time.Millisecond)

	err = s.store.UpdateQuestStatus(ctx, id.NewQuestID(), quest.QuestStatusDraft, quest.QuestStatusActive)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestReplaceMilestonesRecomputesTotal verifies the batch replace persists
// milestones in order and updates the quest's total.
func (s *PostgresStoreSuite) TestReplaceMilestonesRecomputesTotal() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	m1 := makeMilestone(q.ID, 0, 500000)
	m2 := makeMilestone(q.ID, 1, 1000000, m1.ID)
	s.replace(q.ID, []quest.Milestone{m1, m2})

	ms, err := s.store.ListMilestones(ctx, q.ID)
	s.Require().NoError(err)
	s.Require().Len(ms, 2)
	s.Equal(m1.ID, ms[0].ID)
	s.Equal(m2.ID, ms[1].ID)
	s.Equal([]id.MilestoneID{m1.ID}, ms[1].Prerequisites)

	found, err := s.store.FindQuest(ctx, q.ID)
	s.Require().NoError(err)
	s.Equal(int64(1500000), found.TotalValue)
}

// TestReplaceMilestonesRequiresTransaction verifies the ambient-transaction
// guard rejects a bare call.
func (s *PostgresStoreSuite) TestReplaceMilestonesRequiresTransaction() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	err := s.store.ReplaceMilestones(ctx, q.ID, nil, 0)
	s.Error(err)
}

// TestReplaceKeepsCarriedEvidence verifies a replace drops evidence only for
// milestones removed from the set; carried-over IDs keep their history.
func (s *PostgresStoreSuite) TestReplaceKeepsCarriedEvidence() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	m1 := makeMilestone(q.ID, 0, 100)
	m2 := makeMilestone(q.ID, 1, 200)
	s.replace(q.ID, []quest.Milestone{m1, m2})

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.AppendEvidence(ctx, quest.Evidence{
		MilestoneID: m1.ID,
		SubmittedBy: id.NewPrincipalID(),
		Kind:        quest.EvidenceKindText,
		Text:        "kept",
		SubmittedAt: now,
	}))
	s.Require().NoError(s.store.AppendEvidence(ctx, quest.Evidence{
		MilestoneID: m2.ID,
		SubmittedBy: id.NewPrincipalID(),
		Kind:        quest.EvidenceKindText,
		Text:        "dropped with its milestone",
		SubmittedAt: now,
	}))

	// Drop m2, carry m1, add a fresh one.
	m3 := makeMilestone(q.ID, 1, 300, m1.ID)
	s.replace(q.ID, []quest.Milestone{m1, m3})

	kept, err := s.store.ListEvidence(ctx, m1.ID)
	s.Require().NoError(err)
	s.Require().Len(kept, 1)
	s.Equal("kept", kept[0].Text)

	gone, err := s.store.ListEvidence(ctx, m2.ID)
	s.Require().NoError(err)
	s.Empty(gone)
}

// TestTransitionMilestoneCAS verifies the milestone compare-and-swap applies
// the stamp, rejects stale expectations, and clears rejection reasons on the
// next cycle.
func (s *PostgresStoreSuite) TestTransitionMilestoneCAS() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	m := makeMilestone(q.ID, 0, 100)
	s.replace(q.ID, []quest.Milestone{m})

	started := time.Now().UTC().Truncate(time.Microsecond)
	got, err := s.store.TransitionMilestone(ctx, m.ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{StartedAt: &started})
	s.Require().NoError(err)
	s.Equal(quest.MilestoneStatusInProgress, got.Status)
	s.Require().NotNil(got.StartedAt)
	s.WithinDuration(started, *got.StartedAt, time.Millisecond)

	// The same transition again races against itself and loses.
	_, err = s.store.TransitionMilestone(ctx, m.ID,
		quest.MilestoneStatusLocked, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.TransitionMilestone(ctx, id.NewMilestoneID(),
		quest.MilestoneStatusLocked, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{})
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Reject stores the reason; restarting the cycle clears it.
	submitted := started.Add(time.Minute)
	_, err = s.store.TransitionMilestone(ctx, m.ID,
		quest.MilestoneStatusInProgress, quest.MilestoneStatusPendingVerification,
		quest.TransitionStamp{SubmittedAt: &submitted})
	s.Require().NoError(err)

	got, err = s.store.TransitionMilestone(ctx, m.ID,
		quest.MilestoneStatusPendingVerification, quest.MilestoneStatusInProgress,
		quest.TransitionStamp{RejectionReason: "photo is illegible"})
	s.Require().NoError(err)
	s.Equal("photo is illegible", got.RejectionReason)

	got, err = s.store.TransitionMilestone(ctx, m.ID,
		quest.MilestoneStatusInProgress, quest.MilestoneStatusPendingVerification,
		quest.TransitionStamp{SubmittedAt: &submitted, ClearRejectionReason: true})
	s.Require().NoError(err)
	s.Empty(got.RejectionReason)
}

// TestListPendingByEstate verifies the trustee queue joins quests with their
// pending milestones and carries full evidence history.
func (s *PostgresStoreSuite) TestListPendingByEstate() {
	ctx := context.Background()
	estateID, benID := s.seedEstate()
	q := s.seedQuest(estateID, benID)

	m1 := makeMilestone(q.ID, 0, 100)
	m1.Status = quest.MilestoneStatusPendingVerification
	m2 := makeMilestone(q.ID, 1, 200, m1.ID)
	s.replace(q.ID, []quest.Milestone{m1, m2})

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.AppendEvidence(ctx, quest.Evidence{
		MilestoneID: m1.ID,
		SubmittedBy: id.NewPrincipalID(),
		Kind:        quest.EvidenceKindDocument,
		Ref:         "blob://diploma.pdf",
		SubmittedAt: now,
	}))

	pending, err := s.store.ListPendingByEstate(ctx, estateID)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(q.ID, pending[0].Quest.ID)
	s.Equal(m1.ID, pending[0].Milestone.ID)
	s.Require().Len(pending[0].Evidence, 1)
	s.Equal("blob://diploma.pdf", pending[0].Evidence[0].Ref)

	// Other estates never leak into the queue.
	otherEstate, otherBen := s.seedEstate()
	_ = otherBen
	other, err := s.store.ListPendingByEstate(ctx, otherEstate)
	s.Require().NoError(err)
	s.Empty(other)
}
