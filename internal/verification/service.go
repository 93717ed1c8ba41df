// Package verification owns the milestone state machine: beneficiary
// progress (start, submit), trustee review (approve, reject), and the
// trustee queue. Every transition is compare-and-swapped against the stored
// status and writes one audit entry in the same transaction.
package verification

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"heirloom/internal/audit"
	"heirloom/internal/estate"
	"heirloom/internal/quest"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/sentinel"
	txrunner "heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

// Store is the quest-side persistence surface the state machine needs.
type Store interface {
	FindQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
	UpdateQuestStatus(ctx context.Context, questID id.QuestID, from, to quest.QuestStatus) error
	ListMilestones(ctx context.Context, questID id.QuestID) ([]quest.Milestone, error)
	FindMilestone(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error)
	TransitionMilestone(ctx context.Context, milestoneID id.MilestoneID, from, to quest.MilestoneStatus, stamp quest.TransitionStamp) (*quest.Milestone, error)
	AppendEvidence(ctx context.Context, ev quest.Evidence) error
	ListEvidence(ctx context.Context, milestoneID id.MilestoneID) ([]quest.Evidence, error)
	ListPendingByEstate(ctx context.Context, estateID id.EstateID) ([]quest.PendingReview, error)
}

// EstateDirectory answers membership questions.
type EstateDirectory interface {
	FindEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error)
	FindBeneficiaryByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Beneficiary, error)
	FindTrusteeByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error)
}

// UnlockGate reacts to milestone completion inside the same transaction.
type UnlockGate interface {
	OnMilestoneCompleted(ctx context.Context, estateID id.EstateID, questID id.QuestID, milestoneID id.MilestoneID, at time.Time) ([]id.MediaID, error)
}

// Service is the verification state machine.
type Service struct {
	store   Store
	estates EstateDirectory
	gate    UnlockGate
	policy  AutoApprovalPolicy
	audit   *audit.Publisher
	tx      txrunner.Runner
	metrics *Metrics
	tracer  trace.Tracer
}

func New(store Store, estates EstateDirectory, gate UnlockGate, policy AutoApprovalPolicy, auditor *audit.Publisher, runner txrunner.Runner, metrics *Metrics) *Service {
	return &Service{
		store:   store,
		estates: estates,
		gate:    gate,
		policy:  policy,
		audit:   auditor,
		tx:      runner,
		metrics: metrics,
		tracer:  otel.Tracer("verification"),
	}
}

var (
	errNotPermitted = dErrors.New(dErrors.CodePermissionDenied, "not permitted")
	errStateRace    = dErrors.New(dErrors.CodeStateConflict, "already processed")
)

// Start moves an unlocked milestone into progress. Only the quest's linked
// beneficiary may start, and only while the quest is active.
func (s *Service) Start(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Start")
	defer span.End()

	m, q, _, err := s.beneficiaryMilestone(ctx, milestoneID)
	if err != nil {
		s.metrics.observe("start", "denied")
		return nil, err
	}

	siblings, err := s.store.ListMilestones(ctx, q.ID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list milestones", err)
	}
	effective := quest.EffectiveStatus(m, quest.MilestonesByID(siblings))
	if effective != quest.MilestoneStatusUnlocked && effective != quest.MilestoneStatusRejected {
		s.metrics.observe("start", "conflict")
		return nil, errStateRace
	}

	now := requestcontext.Now(ctx)
	var updated *quest.Milestone
	questID := q.ID
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.TransitionMilestone(ctx, milestoneID, m.Status, quest.MilestoneStatusInProgress,
			quest.TransitionStamp{StartedAt: &now})
		if errors.Is(err, sentinel.ErrConflict) {
			return errStateRace
		}
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "transition milestone", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMilestoneStarted,
			Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID, MilestoneID: &milestoneID},
			Before: map[string]any{"status": string(m.Status)},
			After:  map[string]any{"status": string(quest.MilestoneStatusInProgress)},
		})
	})
	if err != nil {
		s.metrics.observe("start", outcomeOf(err))
		return nil, err
	}
	s.metrics.observe("start", "ok")
	return updated, nil
}

// EvidenceInput is an optional attachment to a submission.
type EvidenceInput struct {
	Kind quest.EvidenceKind
	Ref  string
	Text string
}

// Submit moves an in-progress milestone to pending verification, appending
// evidence when provided. The auto-approval policy may short-circuit the
// submission straight to completed.
func (s *Service) Submit(ctx context.Context, milestoneID id.MilestoneID, evidence *EvidenceInput) (*quest.Milestone, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Submit")
	defer span.End()

	m, q, b, err := s.beneficiaryMilestone(ctx, milestoneID)
	if err != nil {
		s.metrics.observe("submit", "denied")
		return nil, err
	}
	if m.Status != quest.MilestoneStatusInProgress {
		s.metrics.observe("submit", "conflict")
		return nil, errStateRace
	}

	now := requestcontext.Now(ctx)
	autoApprove := s.policy.ShouldAutoApprove(ctx, b, m)

	var updated *quest.Milestone
	questID := q.ID
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if evidence != nil {
			ev := quest.Evidence{
				ID:          id.NewEvidenceID(),
				MilestoneID: milestoneID,
				SubmittedBy: requestcontext.PrincipalID(ctx),
				Kind:        evidence.Kind,
				Ref:         evidence.Ref,
				Text:        evidence.Text,
				SubmittedAt: now,
			}
			if err := s.store.AppendEvidence(ctx, ev); err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "append evidence", err)
			}
		}

		target := quest.MilestoneStatusPendingVerification
		stamp := quest.TransitionStamp{SubmittedAt: &now, ClearRejectionReason: true}
		action := audit.ActionMilestoneSubmitted
		if autoApprove {
			target = quest.MilestoneStatusCompleted
			stamp.VerifiedAt = &now
			action = audit.ActionMilestoneAutoDone
		}

		var err error
		updated, err = s.store.TransitionMilestone(ctx, milestoneID, quest.MilestoneStatusInProgress, target, stamp)
		if errors.Is(err, sentinel.ErrConflict) {
			return errStateRace
		}
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "transition milestone", err)
		}

		if err := s.audit.Record(ctx, audit.Entry{
			Action: action,
			Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID, MilestoneID: &milestoneID},
			Before: map[string]any{"status": string(quest.MilestoneStatusInProgress)},
			After:  map[string]any{"status": string(target)},
		}); err != nil {
			return err
		}

		if autoApprove {
			return s.afterCompletion(ctx, q, milestoneID, now)
		}
		return nil
	})
	if err != nil {
		s.metrics.observe("submit", outcomeOf(err))
		return nil, err
	}
	if autoApprove {
		s.metrics.observe("submit", "auto_approved")
		s.metrics.unlocked(m.Value)
	} else {
		s.metrics.observe("submit", "ok")
	}
	return updated, nil
}

// Approve completes a pending milestone. Trustee with the verify grant
// only; a lost race against a concurrent approve or reject surfaces as a
// state conflict, never as double-crediting.
func (s *Service) Approve(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Approve")
	defer span.End()

	m, q, t, err := s.verifierMilestone(ctx, milestoneID)
	if err != nil {
		s.metrics.observe("approve", "denied")
		return nil, err
	}
	if m.Status != quest.MilestoneStatusPendingVerification {
		s.metrics.observe("approve", "conflict")
		return nil, errStateRace
	}

	now := requestcontext.Now(ctx)
	trusteeID := t.ID
	questID := q.ID
	var updated *quest.Milestone
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.TransitionMilestone(ctx, milestoneID,
			quest.MilestoneStatusPendingVerification, quest.MilestoneStatusCompleted,
			quest.TransitionStamp{VerifiedAt: &now, VerifiedBy: &trusteeID})
		if errors.Is(err, sentinel.ErrConflict) {
			return errStateRace
		}
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "transition milestone", err)
		}

		if err := s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMilestoneApproved,
			Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID, MilestoneID: &milestoneID},
			Before: map[string]any{"status": string(quest.MilestoneStatusPendingVerification)},
			After: map[string]any{
				"status":      string(quest.MilestoneStatusCompleted),
				"verified_by": trusteeID.String(),
				"value":       m.Value,
			},
		}); err != nil {
			return err
		}
		return s.afterCompletion(ctx, q, milestoneID, now)
	})
	if err != nil {
		s.metrics.observe("approve", outcomeOf(err))
		return nil, err
	}
	s.metrics.observe("approve", "ok")
	s.metrics.unlocked(m.Value)
	return updated, nil
}

// Reject sends a pending milestone back to in-progress with a reason. The
// evidence history is retained; a trustee-authored boundary entry closes
// the submission cycle.
func (s *Service) Reject(ctx context.Context, milestoneID id.MilestoneID, reason string) (*quest.Milestone, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Reject")
	defer span.End()

	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}

	m, q, t, err := s.verifierMilestone(ctx, milestoneID)
	if err != nil {
		s.metrics.observe("reject", "denied")
		return nil, err
	}
	if m.Status != quest.MilestoneStatusPendingVerification {
		s.metrics.observe("reject", "conflict")
		return nil, errStateRace
	}

	now := requestcontext.Now(ctx)
	trusteeID := t.ID
	questID := q.ID
	var updated *quest.Milestone
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.TransitionMilestone(ctx, milestoneID,
			quest.MilestoneStatusPendingVerification, quest.MilestoneStatusInProgress,
			quest.TransitionStamp{VerifiedBy: &trusteeID, RejectionReason: reason})
		if errors.Is(err, sentinel.ErrConflict) {
			return errStateRace
		}
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "transition milestone", err)
		}

		// Boundary entry: rejection closes the cycle without erasing any
		// prior evidence.
		if err := s.store.AppendEvidence(ctx, quest.Evidence{
			ID:            id.NewEvidenceID(),
			MilestoneID:   milestoneID,
			SubmittedBy:   requestcontext.PrincipalID(ctx),
			Kind:          quest.EvidenceKindText,
			Text:          reason,
			SubmittedAt:   now,
			CycleBoundary: true,
		}); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "append evidence", err)
		}

		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionMilestoneRejected,
			Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID, MilestoneID: &milestoneID},
			Before: map[string]any{"status": string(quest.MilestoneStatusPendingVerification)},
			After: map[string]any{
				"status": string(quest.MilestoneStatusInProgress),
				"reason": reason,
			},
		})
	})
	if err != nil {
		s.metrics.observe("reject", outcomeOf(err))
		return nil, err
	}
	s.metrics.observe("reject", "ok")
	return updated, nil
}

// afterCompletion runs the side effects of a completed milestone: media
// unlocks and, when no unresolved milestones remain, quest completion.
func (s *Service) afterCompletion(ctx context.Context, q *quest.Quest, milestoneID id.MilestoneID, at time.Time) error {
	if _, err := s.gate.OnMilestoneCompleted(ctx, q.EstateID, q.ID, milestoneID, at); err != nil {
		return err
	}

	ms, err := s.store.ListMilestones(ctx, q.ID)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "list milestones", err)
	}
	if !quest.AllCompleted(ms) {
		return nil
	}

	err = s.store.UpdateQuestStatus(ctx, q.ID, quest.QuestStatusActive, quest.QuestStatusCompleted)
	if errors.Is(err, sentinel.ErrConflict) {
		// The quest left active in the meantime; completion stays derived.
		return nil
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "complete quest", err)
	}
	questID := q.ID
	return s.audit.Record(ctx, audit.Entry{
		Action: audit.ActionQuestCompleted,
		Refs:   audit.EntityRefs{EstateID: q.EstateID, QuestID: &questID},
		Before: map[string]any{"status": string(quest.QuestStatusActive)},
		After:  map[string]any{"status": string(quest.QuestStatusCompleted)},
	})
}

// ListEvidence returns a milestone's full evidence history for any member
// of the owning estate.
func (s *Service) ListEvidence(ctx context.Context, milestoneID id.MilestoneID) ([]quest.Evidence, error) {
	m, err := s.store.FindMilestone(ctx, milestoneID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load milestone", err)
	}
	q, err := s.store.FindQuest(ctx, m.QuestID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
	}
	if !s.isMember(ctx, q.EstateID) {
		return nil, errNotPermitted
	}
	evidence, err := s.store.ListEvidence(ctx, milestoneID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list evidence", err)
	}
	return evidence, nil
}

// FetchTrusteeQueue returns every pending-verification milestone across the
// given estates, with evidence, for a trustee linked to each of them. The
// per-estate reads fan out concurrently.
func (s *Service) FetchTrusteeQueue(ctx context.Context, estateIDs []id.EstateID) ([]quest.PendingReview, error) {
	ctx, span := s.tracer.Start(ctx, "verification.FetchTrusteeQueue")
	defer span.End()

	principal := requestcontext.PrincipalID(ctx)

	g, gctx := errgroup.WithContext(ctx)
	perEstate := make([][]quest.PendingReview, len(estateIDs))
	for i, estateID := range estateIDs {
		g.Go(func() error {
			if _, err := s.estates.FindTrusteeByPrincipal(gctx, estateID, principal); err != nil {
				return errNotPermitted
			}
			reviews, err := s.store.ListPendingByEstate(gctx, estateID)
			if err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "list pending reviews", err)
			}
			perEstate[i] = reviews
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []quest.PendingReview
	for _, reviews := range perEstate {
		out = append(out, reviews...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Milestone.SubmittedAt == nil || out[j].Milestone.SubmittedAt == nil {
			return out[j].Milestone.SubmittedAt == nil
		}
		return out[i].Milestone.SubmittedAt.Before(*out[j].Milestone.SubmittedAt)
	})
	return out, nil
}

// beneficiaryMilestone loads the milestone and checks the caller is the
// quest's linked beneficiary and the quest is accepting progress.
func (s *Service) beneficiaryMilestone(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, *quest.Quest, *estate.Beneficiary, error) {
	m, err := s.store.FindMilestone(ctx, milestoneID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, nil, errNotPermitted
	}
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(dErrors.CodeInternal, "load milestone", err)
	}
	q, err := s.store.FindQuest(ctx, m.QuestID)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
	}
	b, err := s.estates.FindBeneficiaryByPrincipal(ctx, q.EstateID, requestcontext.PrincipalID(ctx))
	if err != nil || b.ID != q.BeneficiaryID {
		return nil, nil, nil, errNotPermitted
	}
	if q.Status != quest.QuestStatusActive {
		return nil, nil, nil, errStateRace
	}
	return m, q, b, nil
}

// verifierMilestone loads the milestone and checks the caller is a trustee
// of the owning estate holding the verify grant.
func (s *Service) verifierMilestone(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, *quest.Quest, *estate.Trustee, error) {
	m, err := s.store.FindMilestone(ctx, milestoneID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, nil, errNotPermitted
	}
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(dErrors.CodeInternal, "load milestone", err)
	}
	q, err := s.store.FindQuest(ctx, m.QuestID)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(dErrors.CodeInternal, "load quest", err)
	}
	t, err := s.estates.FindTrusteeByPrincipal(ctx, q.EstateID, requestcontext.PrincipalID(ctx))
	if err != nil || !t.Permissions.CanVerify {
		return nil, nil, nil, errNotPermitted
	}
	return m, q, t, nil
}

func (s *Service) isMember(ctx context.Context, estateID id.EstateID) bool {
	principal := requestcontext.PrincipalID(ctx)
	e, err := s.estates.FindEstate(ctx, estateID)
	if err != nil {
		return false
	}
	if e.OwnerID == principal {
		return true
	}
	if _, err := s.estates.FindBeneficiaryByPrincipal(ctx, estateID, principal); err == nil {
		return true
	}
	if _, err := s.estates.FindTrusteeByPrincipal(ctx, estateID, principal); err == nil {
		return true
	}
	return false
}

func outcomeOf(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeStateConflict:
		return "conflict"
	case dErrors.CodePermissionDenied:
		return "denied"
	default:
		return "error"
	}
}
