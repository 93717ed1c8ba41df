// Package service implements quest authoring and the read views: create and
// edit draft quests, publish them, and project milestone progress for the
// benefactor and beneficiary.
package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"heirloom/internal/audit"
	"heirloom/internal/estate"
	"heirloom/internal/media"
	"heirloom/internal/quest"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/sentinel"
	txrunner "heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

// Store is the persistence surface for quests, milestones, and evidence.
type Store interface {
	CreateQuest(ctx context.Context, q *quest.Quest) error
	FindQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
	ListQuestsByEstate(ctx context.Context, estateID id.EstateID) ([]quest.Quest, error)
	UpdateQuestStatus(ctx context.Context, questID id.QuestID, from, to quest.QuestStatus) error
	ReplaceMilestones(ctx context.Context, questID id.QuestID, ms []quest.Milestone, total int64) error
	ListMilestones(ctx context.Context, questID id.QuestID) ([]quest.Milestone, error)
	FindMilestone(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error)
}

// EstateDirectory answers ownership and membership questions.
type EstateDirectory interface {
	FindEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error)
	FindBeneficiary(ctx context.Context, beneficiaryID id.BeneficiaryID) (*estate.Beneficiary, error)
	FindBeneficiaryByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Beneficiary, error)
	FindTrusteeByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error)
}

// MediaProjector supplies role-masked media projections for read views.
type MediaProjector interface {
	ListForViewer(ctx context.Context, estateID id.EstateID) ([]media.Projection, error)
}

// Policy carries the authoring policy switches.
type Policy struct {
	// AllowActiveQuestEdits permits milestone edits after publication.
	// Resolved milestones are carried over untouched either way.
	AllowActiveQuestEdits bool
}

// Service orchestrates quest authoring.
type Service struct {
	store   Store
	estates EstateDirectory
	media   MediaProjector
	audit   *audit.Publisher
	tx      txrunner.Runner
	policy  Policy
	tracer  trace.Tracer
}

func New(store Store, estates EstateDirectory, projector MediaProjector, auditor *audit.Publisher, runner txrunner.Runner, policy Policy) *Service {
	return &Service{
		store:   store,
		estates: estates,
		media:   projector,
		audit:   auditor,
		tx:      runner,
		policy:  policy,
		tracer:  otel.Tracer("quest"),
	}
}

var errNotPermitted = dErrors.New(dErrors.CodePermissionDenied, "not permitted")

// CreateQuestParams names the target beneficiary and the quest metadata.
type CreateQuestParams struct {
	BeneficiaryID id.BeneficiaryID
	Title         string
	Description   string
}

// CreateQuest registers a draft quest for one of the estate's beneficiaries.
func (s *Service) CreateQuest(ctx context.Context, estateID id.EstateID, params CreateQuestParams) (*quest.Quest, error) {
	ctx, span := s.tracer.Start(ctx, "quest.CreateQuest")
	defer span.End()

	e, err := s.editableEstate(ctx, estateID)
	if err != nil {
		return nil, err
	}

	b, err := s.estates.FindBeneficiary(ctx, params.BeneficiaryID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeValidation, "beneficiary does not exist")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load beneficiary", err)
	}
	if b.EstateID != e.ID {
		return nil, dErrors.New(dErrors.CodeValidation, "beneficiary belongs to another estate")
	}

	now := requestcontext.Now(ctx)
	q := &quest.Quest{
		ID:            id.NewQuestID(),
		EstateID:      e.ID,
		BeneficiaryID: b.ID,
		Title:         params.Title,
		Description:   params.Description,
		Status:        quest.QuestStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	questID := q.ID
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateQuest(ctx, q); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "create quest", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionQuestCreated,
			Refs:   audit.EntityRefs{EstateID: e.ID, QuestID: &questID},
			After:  map[string]any{"title": q.Title, "beneficiary_id": b.ID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// MilestoneInput is one entry in a batch replace. Prerequisites reference
// sibling entries by position in the batch, which doubles as the order
// index. A non-nil ID carries an existing milestone (and its evidence) over.
type MilestoneInput struct {
	ID            *id.MilestoneID
	Title         string
	Description   string
	Type          string
	Value         int64
	Mode          quest.VerificationMode
	Instructions  string
	Prerequisites []int
}

// ReplaceMilestones swaps the quest's milestone set atomically. Draft
// quests are freely editable; active quests only when the policy allows it,
// and resolved milestones must be carried over with their stored state.
// The quest's total is recomputed in the same transaction.
func (s *Service) ReplaceMilestones(ctx context.Context, questID id.QuestID, inputs []MilestoneInput) ([]quest.Milestone, error) {
	ctx, span := s.tracer.Start(ctx, "quest.ReplaceMilestones")
	defer span.End()

	q, err := s.editableQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	if !q.Status.Editable() && !(q.Status == quest.QuestStatusActive && s.policy.AllowActiveQuestEdits) {
		return nil, dErrors.New(dErrors.CodeStateConflict, "already processed")
	}

	existing, err := s.store.ListMilestones(ctx, questID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list milestones", err)
	}
	existingByID := make(map[id.MilestoneID]*quest.Milestone, len(existing))
	for i := range existing {
		existingByID[existing[i].ID] = &existing[i]
	}

	batch, err := s.assembleBatch(questID, inputs, existingByID)
	if err != nil {
		return nil, err
	}

	if q.Status == quest.QuestStatusActive {
		if err := requireResolvedCarryOver(existing, batch); err != nil {
			return nil, err
		}
	}

	if err := quest.ValidateGraph(batch); err != nil {
		var gerr *quest.GraphError
		if errors.As(err, &gerr) {
			return nil, dErrors.Wrap(dErrors.CodeValidation, gerr.Reason, err)
		}
		return nil, dErrors.Wrap(dErrors.CodeValidation, "invalid milestone batch", err)
	}

	total := quest.TotalValue(batch)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.ReplaceMilestones(ctx, questID, batch, total); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "replace milestones", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMilestonesReplaced,
			Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID},
			Before: map[string]any{"milestone_count": len(existing), "total_value": q.TotalValue},
			After:  map[string]any{"milestone_count": len(batch), "total_value": total},
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *Service) assembleBatch(questID id.QuestID, inputs []MilestoneInput, existingByID map[id.MilestoneID]*quest.Milestone) ([]quest.Milestone, error) {
	batch := make([]quest.Milestone, len(inputs))
	for i, in := range inputs {
		m := quest.Milestone{
			ID:           id.NewMilestoneID(),
			QuestID:      questID,
			OrderIndex:   i,
			Title:        in.Title,
			Description:  in.Description,
			Type:         in.Type,
			Value:        in.Value,
			Mode:         in.Mode,
			Instructions: in.Instructions,
			Status:       quest.MilestoneStatusLocked,
		}
		if in.ID != nil {
			prev, ok := existingByID[*in.ID]
			if !ok {
				return nil, dErrors.New(dErrors.CodeValidation, "carried-over milestone does not exist")
			}
			m.ID = prev.ID
			m.Status = prev.Status
			m.RejectionReason = prev.RejectionReason
			m.StartedAt = prev.StartedAt
			m.SubmittedAt = prev.SubmittedAt
			m.VerifiedAt = prev.VerifiedAt
			m.VerifiedBy = prev.VerifiedBy
			if prev.Status.Resolved() {
				// Resolved milestones keep their authored content too;
				// edits to them are silently discarded.
				m.Title = prev.Title
				m.Description = prev.Description
				m.Type = prev.Type
				m.Value = prev.Value
				m.Mode = prev.Mode
				m.Instructions = prev.Instructions
			}
		}
		batch[i] = m
	}
	for i, in := range inputs {
		for _, p := range in.Prerequisites {
			if p < 0 || p >= len(batch) {
				return nil, dErrors.Newf(dErrors.CodeValidation, "prerequisite index %d out of range", p)
			}
			batch[i].Prerequisites = append(batch[i].Prerequisites, batch[p].ID)
		}
	}
	return batch, nil
}

func requireResolvedCarryOver(existing, batch []quest.Milestone) error {
	inBatch := make(map[id.MilestoneID]bool, len(batch))
	for i := range batch {
		inBatch[batch[i].ID] = true
	}
	for i := range existing {
		if existing[i].Status.Resolved() && !inBatch[existing[i].ID] {
			return dErrors.New(dErrors.CodeValidation, "resolved milestones cannot be removed from an active quest")
		}
	}
	return nil
}

// PublishQuest moves a draft with at least one milestone to active.
func (s *Service) PublishQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error) {
	ctx, span := s.tracer.Start(ctx, "quest.PublishQuest")
	defer span.End()

	q, err := s.editableQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	ms, err := s.store.ListMilestones(ctx, questID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list milestones", err)
	}
	if len(ms) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a quest needs at least one milestone before publishing")
	}
	return s.moveQuest(ctx, q, quest.QuestStatusDraft, quest.QuestStatusActive, audit.ActionQuestPublished)
}

// PauseQuest suspends an active quest.
func (s *Service) PauseQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error) {
	q, err := s.editableQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	return s.moveQuest(ctx, q, quest.QuestStatusActive, quest.QuestStatusPaused, audit.ActionQuestPaused)
}

// ResumeQuest reactivates a paused quest.
func (s *Service) ResumeQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error) {
	q, err := s.editableQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	return s.moveQuest(ctx, q, quest.QuestStatusPaused, quest.QuestStatusActive, audit.ActionQuestResumed)
}

// ArchiveQuest retires a quest from any non-terminal state.
func (s *Service) ArchiveQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error) {
	q, err := s.editableQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	if q.Status.Terminal() {
		return nil, dErrors.New(dErrors.CodeStateConflict, "already processed")
	}
	return s.moveQuest(ctx, q, q.Status, quest.QuestStatusArchived, audit.ActionQuestArchived)
}

func (s *Service) moveQuest(ctx context.Context, q *quest.Quest, from, to quest.QuestStatus, action audit.Action) (*quest.Quest, error) {
	questID := q.ID
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateQuestStatus(ctx, questID, from, to); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeStateConflict, "already processed")
			}
			return dErrors.Wrap(dErrors.CodeInternal, "update quest status", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: action,
			Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID},
			Before: map[string]any{"status": string(from)},
			After:  map[string]any{"status": string(to)},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.store.FindQuest(ctx, questID)
}

// MilestoneView is a milestone with its derived, externally visible status.
type MilestoneView struct {
	quest.Milestone
	EffectiveStatus quest.MilestoneStatus
}

// QuestView is the full quest read model: milestones with derived statuses
// and the valuation trio.
type QuestView struct {
	Quest          quest.Quest
	Milestones     []MilestoneView
	TotalValue     int64
	UnlockedValue  int64
	RemainingValue int64
}

// BeneficiaryView is what the quest's beneficiary sees: progress plus the
// estate's media as masked projections.
type BeneficiaryView struct {
	QuestView
	Media []media.Projection
}

// GetQuest returns the quest read model for the estate owner or a trustee.
func (s *Service) GetQuest(ctx context.Context, questID id.QuestID) (*QuestView, error) {
	q, err := s.store.FindQuest(ctx, questID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
	}
	if err := s.requireOverview(ctx, q); err != nil {
		return nil, err
	}
	return s.buildView(ctx, q)
}

// FetchBeneficiaryView returns milestones and masked media for the quest's
// linked beneficiary.
func (s *Service) FetchBeneficiaryView(ctx context.Context, questID id.QuestID) (*BeneficiaryView, error) {
	ctx, span := s.tracer.Start(ctx, "quest.FetchBeneficiaryView")
	defer span.End()

	q, err := s.store.FindQuest(ctx, questID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
	}

	b, err := s.estates.FindBeneficiaryByPrincipal(ctx, q.EstateID, requestcontext.PrincipalID(ctx))
	if err != nil || b.ID != q.BeneficiaryID {
		return nil, errNotPermitted
	}

	view, err := s.buildView(ctx, q)
	if err != nil {
		return nil, err
	}
	projections, err := s.media.ListForViewer(ctx, q.EstateID)
	if err != nil {
		return nil, err
	}
	return &BeneficiaryView{QuestView: *view, Media: projections}, nil
}

// ListQuests returns the estate's quests for the owner or a trustee.
func (s *Service) ListQuests(ctx context.Context, estateID id.EstateID) ([]quest.Quest, error) {
	e, err := s.estates.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID != principal {
		if _, err := s.estates.FindTrusteeByPrincipal(ctx, estateID, principal); err != nil {
			return nil, errNotPermitted
		}
	}
	out, err := s.store.ListQuestsByEstate(ctx, estateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list quests", err)
	}
	return out, nil
}

// EstateSummary aggregates valuation across the estate's quests.
type EstateSummary struct {
	Quests         []QuestView
	TotalValue     int64
	UnlockedValue  int64
	RemainingValue int64
}

// Summary builds the benefactor dashboard: every quest with its valuation,
// plus estate-wide totals.
func (s *Service) Summary(ctx context.Context, estateID id.EstateID) (*EstateSummary, error) {
	ctx, span := s.tracer.Start(ctx, "quest.Summary")
	defer span.End()

	e, err := s.estates.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	if e.OwnerID != requestcontext.PrincipalID(ctx) {
		return nil, errNotPermitted
	}

	quests, err := s.store.ListQuestsByEstate(ctx, estateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list quests", err)
	}

	summary := &EstateSummary{}
	for i := range quests {
		view, err := s.buildView(ctx, &quests[i])
		if err != nil {
			return nil, err
		}
		summary.Quests = append(summary.Quests, *view)
		summary.TotalValue += view.TotalValue
		summary.UnlockedValue += view.UnlockedValue
	}
	summary.RemainingValue = summary.TotalValue - summary.UnlockedValue
	return summary, nil
}

func (s *Service) buildView(ctx context.Context, q *quest.Quest) (*QuestView, error) {
	ms, err := s.store.ListMilestones(ctx, q.ID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list milestones", err)
	}
	byID := quest.MilestonesByID(ms)
	views := make([]MilestoneView, len(ms))
	for i := range ms {
		views[i] = MilestoneView{
			Milestone:       ms[i],
			EffectiveStatus: quest.EffectiveStatus(&ms[i], byID),
		}
	}
	total := quest.TotalValue(ms)
	unlocked := quest.UnlockedValue(ms)
	return &QuestView{
		Quest:          *q,
		Milestones:     views,
		TotalValue:     total,
		UnlockedValue:  unlocked,
		RemainingValue: total - unlocked,
	}, nil
}

// editableEstate checks the caller may author on the estate: the owner, or
// a trustee holding the edit grant.
func (s *Service) editableEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error) {
	e, err := s.estates.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID == principal {
		return e, nil
	}
	t, err := s.estates.FindTrusteeByPrincipal(ctx, estateID, principal)
	if err == nil && t.Permissions.CanEdit {
		return e, nil
	}
	return nil, errNotPermitted
}

func (s *Service) editableQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error) {
	q, err := s.store.FindQuest(ctx, questID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
	}
	if _, err := s.editableEstate(ctx, q.EstateID); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) requireOverview(ctx context.Context, q *quest.Quest) error {
	e, err := s.estates.FindEstate(ctx, q.EstateID)
	if err != nil {
		return errNotPermitted
	}
	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID == principal {
		return nil
	}
	if _, err := s.estates.FindTrusteeByPrincipal(ctx, q.EstateID, principal); err == nil {
		return nil
	}
	return errNotPermitted
}
