// Package service implements media management: benefactor-authored locked
// assets, manual unlocks, and the masked projections other roles see.
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

// EstateDirectory answers ownership and membership questions.
type EstateDirectory interface {
	FindEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error)
	FindBeneficiaryByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Beneficiary, error)
	FindTrusteeByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error)
}

// MilestoneDirectory resolves milestones for binding checks and titles.
type MilestoneDirectory interface {
	FindMilestone(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error)
	FindQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
}

// Service owns the media lifecycle outside the unlock gate.
type Service struct {
	store   media.Store
	estates EstateDirectory
	quests  MilestoneDirectory
	audit   *audit.Publisher
	tx      txrunner.Runner
	tracer  trace.Tracer
}

func New(store media.Store, estates EstateDirectory, quests MilestoneDirectory, auditor *audit.Publisher, runner txrunner.Runner) *Service {
	return &Service{
		store:   store,
		estates: estates,
		quests:  quests,
		audit:   auditor,
		tx:      runner,
		tracer:  otel.Tracer("media"),
	}
}

var errNotPermitted = dErrors.New(dErrors.CodePermissionDenied, "not permitted")

// RegisterParams describes a new locked asset.
type RegisterParams struct {
	Title        string
	Kind         media.Kind
	StorageRef   string
	ThumbnailRef string
	Condition    media.UnlockCondition
	MilestoneID  *id.MilestoneID
}

// Register binds a new asset to the estate. Owner only. Immediate-condition
// assets are born unlocked; milestone-conditioned ones must name a milestone
// belonging to the same estate.
func (s *Service) Register(ctx context.Context, estateID id.EstateID, params RegisterParams) (*media.Media, error) {
	ctx, span := s.tracer.Start(ctx, "media.Register")
	defer span.End()

	e, err := s.ownedEstate(ctx, estateID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	m := &media.Media{
		ID:           id.NewMediaID(),
		EstateID:     e.ID,
		Title:        params.Title,
		Kind:         params.Kind,
		StorageRef:   params.StorageRef,
		ThumbnailRef: params.ThumbnailRef,
		Condition:    params.Condition,
		CreatedAt:    now,
	}

	if params.MilestoneID != nil {
		ms, err := s.quests.FindMilestone(ctx, *params.MilestoneID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "bound milestone does not exist")
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "load milestone", err)
		}
		q, err := s.quests.FindQuest(ctx, ms.QuestID)
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
		}
		if q.EstateID != e.ID {
			return nil, dErrors.New(dErrors.CodeValidation, "bound milestone belongs to another estate")
		}
		m.MilestoneID = params.MilestoneID
		m.QuestID = &ms.QuestID
	} else if params.Condition == media.UnlockMilestoneComplete || params.Condition == media.UnlockQuestComplete {
		return nil, dErrors.New(dErrors.CodeValidation, "milestone binding required for this unlock condition")
	}

	if params.Condition == media.UnlockImmediate {
		m.Unlocked = true
		t := now
		m.UnlockedAt = &t
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, m); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "create media", err)
		}
		mediaID := m.ID
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMediaRegistered,
			Refs:   audit.EntityRefs{EstateID: e.ID, QuestID: m.QuestID, MilestoneID: m.MilestoneID, MediaID: &mediaID},
			After:  map[string]any{"kind": string(m.Kind), "condition": string(m.Condition), "unlocked": m.Unlocked},
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ManualUnlock flips an asset open by benefactor decision. Only assets with
// the manual condition qualify; gate-driven conditions stay gate-driven.
func (s *Service) ManualUnlock(ctx context.Context, mediaID id.MediaID) (*media.Media, error) {
	ctx, span := s.tracer.Start(ctx, "media.ManualUnlock")
	defer span.End()

	m, err := s.ownedMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.Condition != media.UnlockManual {
		return nil, dErrors.New(dErrors.CodeValidation, "media is not manually unlockable")
	}
	if m.Unlocked {
		return nil, dErrors.New(dErrors.CodeStateConflict, "already processed")
	}

	now := requestcontext.Now(ctx)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.MarkUnlocked(ctx, m.ID, now); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "unlock media", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMediaUnlocked,
			Refs:   audit.EntityRefs{EstateID: m.EstateID, QuestID: m.QuestID, MilestoneID: m.MilestoneID, MediaID: &mediaID},
			Before: map[string]any{"unlocked": false},
			After:  map[string]any{"unlocked": true, "condition": string(media.UnlockManual)},
		})
	})
	if err != nil {
		return nil, err
	}
	m.Unlocked = true
	m.UnlockedAt = &now
	return m, nil
}

// Delete removes an asset. Owner only. Unlock history stays in the audit
// log; the row itself goes away.
func (s *Service) Delete(ctx context.Context, mediaID id.MediaID) error {
	ctx, span := s.tracer.Start(ctx, "media.Delete")
	defer span.End()

	m, err := s.ownedMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, m.ID); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "delete media", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMediaDeleted,
			Refs:   audit.EntityRefs{EstateID: m.EstateID, QuestID: m.QuestID, MilestoneID: m.MilestoneID, MediaID: &mediaID},
			Before: map[string]any{"kind": string(m.Kind), "unlocked": m.Unlocked},
		})
	})
}

// ListForViewer returns the estate's media as role-masked projections.
// Locked rows carry no storage or thumbnail reference for non-owners.
func (s *Service) ListForViewer(ctx context.Context, estateID id.EstateID) ([]media.Projection, error) {
	role, err := s.membership(ctx, estateID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListByEstate(ctx, estateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list media", err)
	}

	out := make([]media.Projection, 0, len(items))
	for i := range items {
		m := &items[i]
		title := ""
		if m.MilestoneID != nil {
			if ms, err := s.quests.FindMilestone(ctx, *m.MilestoneID); err == nil {
				title = ms.Title
			}
		}
		out = append(out, media.ProjectForViewer(m, role, title))
	}
	return out, nil
}

func (s *Service) ownedEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error) {
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
	return e, nil
}

func (s *Service) ownedMedia(ctx context.Context, mediaID id.MediaID) (*media.Media, error) {
	m, err := s.store.Find(ctx, mediaID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load media", err)
	}
	if _, err := s.ownedEstate(ctx, m.EstateID); err != nil {
		return nil, err
	}
	return m, nil
}

// membership resolves the caller's role on the estate, masking absence.
func (s *Service) membership(ctx context.Context, estateID id.EstateID) (id.Role, error) {
	e, err := s.estates.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", errNotPermitted
	}
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID == principal {
		return id.RoleBenefactor, nil
	}
	if _, err := s.estates.FindBeneficiaryByPrincipal(ctx, estateID, principal); err == nil {
		return id.RoleBeneficiary, nil
	}
	if _, err := s.estates.FindTrusteeByPrincipal(ctx, estateID, principal); err == nil {
		return id.RoleTrustee, nil
	}
	return "", errNotPermitted
}
