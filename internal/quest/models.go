// Package quest holds the quest and milestone domain model: lifecycle
// statuses, the prerequisite graph, derived lock state, and valuation.
package quest

import (
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// QuestStatus is the quest lifecycle.
type QuestStatus string

const (
	QuestStatusDraft     QuestStatus = "draft"
	QuestStatusActive    QuestStatus = "active"
	QuestStatusPaused    QuestStatus = "paused"
	QuestStatusCompleted QuestStatus = "completed"
	QuestStatusArchived  QuestStatus = "archived"
)

// Editable reports whether the benefactor may still author this quest's
// milestone set outright. Active quests need the carry-over rules instead.
func (s QuestStatus) Editable() bool { return s == QuestStatusDraft }

// Terminal reports whether the quest can never change again.
func (s QuestStatus) Terminal() bool { return s == QuestStatusArchived }

// MilestoneStatus is the stored verification state of a milestone.
//
// "unlocked" is deliberately absent: whether a locked milestone is eligible
// to start is derived on read from its prerequisites, never persisted.
type MilestoneStatus string

const (
	MilestoneStatusLocked              MilestoneStatus = "locked"
	MilestoneStatusInProgress          MilestoneStatus = "in_progress"
	MilestoneStatusPendingVerification MilestoneStatus = "pending_verification"
	MilestoneStatusCompleted           MilestoneStatus = "completed"
	MilestoneStatusRejected            MilestoneStatus = "rejected"

	// MilestoneStatusUnlocked only ever appears as a derived value.
	MilestoneStatusUnlocked MilestoneStatus = "unlocked"
)

// Resolved reports whether the milestone has left the authoring-mutable
// portion of its lifecycle.
func (s MilestoneStatus) Resolved() bool {
	return s != MilestoneStatusLocked && s != MilestoneStatusUnlocked
}

// VerificationMode tags how completion evidence is expected to arrive.
type VerificationMode string

const (
	VerificationModeManual    VerificationMode = "manual"
	VerificationModeDocument  VerificationMode = "document"
	VerificationModePhoto     VerificationMode = "photo"
	VerificationModeAutomatic VerificationMode = "automatic"
)

var validVerificationModes = map[VerificationMode]bool{
	VerificationModeManual:    true,
	VerificationModeDocument:  true,
	VerificationModePhoto:     true,
	VerificationModeAutomatic: true,
}

// ParseVerificationMode constructs a VerificationMode from external input.
func ParseVerificationMode(s string) (VerificationMode, error) {
	m := VerificationMode(s)
	if !validVerificationModes[m] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid verification mode %q", s)
	}
	return m, nil
}

// Quest is an ordered sequence of milestones targeting one beneficiary.
// TotalValueCents always equals the sum of its milestones' unlock values;
// the store recomputes it inside every milestone batch replace.
type Quest struct {
	ID            id.QuestID
	EstateID      id.EstateID
	BeneficiaryID id.BeneficiaryID
	Title         string
	Description   string
	TotalValue    int64 // minor currency units
	Status        QuestStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublishedAt   *time.Time
}

// Milestone is a single gated achievement within a quest.
type Milestone struct {
	ID            id.MilestoneID
	QuestID       id.QuestID
	OrderIndex    int
	Title         string
	Description   string
	Type          string
	Value         int64 // minor currency units, non-negative
	Mode          VerificationMode
	Instructions  string
	Status        MilestoneStatus
	Prerequisites []id.MilestoneID

	// RejectionReason is set only while the milestone sits in a
	// post-rejection state; resubmission clears it.
	RejectionReason string

	StartedAt   *time.Time
	SubmittedAt *time.Time
	VerifiedAt  *time.Time
	VerifiedBy  *id.TrusteeID
}

// EvidenceKind labels a piece of submitted proof.
type EvidenceKind string

const (
	EvidenceKindText     EvidenceKind = "text"
	EvidenceKindPhoto    EvidenceKind = "photo"
	EvidenceKindDocument EvidenceKind = "document"
	EvidenceKindLink     EvidenceKind = "link"
)

var validEvidenceKinds = map[EvidenceKind]bool{
	EvidenceKindText:     true,
	EvidenceKindPhoto:    true,
	EvidenceKindDocument: true,
	EvidenceKindLink:     true,
}

// ParseEvidenceKind constructs an EvidenceKind from external input.
func ParseEvidenceKind(s string) (EvidenceKind, error) {
	k := EvidenceKind(s)
	if !validEvidenceKinds[k] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid evidence kind %q", s)
	}
	return k, nil
}

// Evidence is append-only proof attached to a milestone. Entries are never
// deleted or mutated; a rejection appends a cycle-boundary marker instead of
// erasing history.
type Evidence struct {
	ID          id.EvidenceID
	MilestoneID id.MilestoneID
	SubmittedBy id.PrincipalID
	Kind        EvidenceKind
	Ref         string // opaque blob-store reference for photo/document
	Text        string // inline text for text/link kinds
	SubmittedAt time.Time

	// CycleBoundary marks the trustee-written entry that closes a
	// submit/reject cycle; everything after it belongs to the next attempt.
	CycleBoundary bool
}

// EffectiveStatus derives the externally visible status of a milestone.
// A stored "locked" milestone reads as unlocked when every prerequisite is
// completed; the zero-index milestone is always eligible to start.
func EffectiveStatus(m *Milestone, byID map[id.MilestoneID]*Milestone) MilestoneStatus {
	if m.Status != MilestoneStatusLocked {
		return m.Status
	}
	if m.OrderIndex == 0 {
		return MilestoneStatusUnlocked
	}
	for _, prereq := range m.Prerequisites {
		dep, ok := byID[prereq]
		if !ok || dep.Status != MilestoneStatusCompleted {
			return MilestoneStatusLocked
		}
	}
	return MilestoneStatusUnlocked
}

// MilestonesByID indexes a milestone batch for prerequisite lookups.
func MilestonesByID(ms []Milestone) map[id.MilestoneID]*Milestone {
	byID := make(map[id.MilestoneID]*Milestone, len(ms))
	for i := range ms {
		byID[ms[i].ID] = &ms[i]
	}
	return byID
}

// TotalValue sums every milestone's unlock value.
func TotalValue(ms []Milestone) int64 {
	var total int64
	for i := range ms {
		total += ms[i].Value
	}
	return total
}

// UnlockedValue sums the unlock values of completed milestones.
func UnlockedValue(ms []Milestone) int64 {
	var total int64
	for i := range ms {
		if ms[i].Status == MilestoneStatusCompleted {
			total += ms[i].Value
		}
	}
	return total
}

// RemainingValue is the value still gated behind unresolved milestones.
func RemainingValue(ms []Milestone) int64 {
	return TotalValue(ms) - UnlockedValue(ms)
}

// TransitionStamp carries the fields a status transition may set alongside
// the CAS write. Nil pointers leave the stored value untouched; the
// rejection reason is special-cased so resubmission can clear it.
type TransitionStamp struct {
	StartedAt   *time.Time
	SubmittedAt *time.Time
	VerifiedAt  *time.Time
	VerifiedBy  *id.TrusteeID

	RejectionReason      string
	ClearRejectionReason bool
}

// PendingReview is one trustee-queue row: a milestone awaiting verification
// with its quest and full evidence history.
type PendingReview struct {
	Quest     Quest
	Milestone Milestone
	Evidence  []Evidence
}

// AllCompleted reports whether every milestone in the batch is completed.
// An empty batch is not complete; a quest cannot finish without milestones.
func AllCompleted(ms []Milestone) bool {
	if len(ms) == 0 {
		return false
	}
	for i := range ms {
		if ms[i].Status != MilestoneStatusCompleted {
			return false
		}
	}
	return true
}
