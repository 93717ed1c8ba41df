// Package media holds the locked-asset model: items a benefactor binds to
// the estate whose storage references stay hidden until an unlock condition
// is met.
package media

import (
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// Kind classifies the asset payload.
type Kind string

const (
	KindVideo    Kind = "video"
	KindLetter   Kind = "letter"
	KindPhoto    Kind = "photo"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

var validKinds = map[Kind]bool{
	KindVideo:    true,
	KindLetter:   true,
	KindPhoto:    true,
	KindAudio:    true,
	KindDocument: true,
}

// ParseKind constructs a Kind from external input.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !validKinds[k] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid media kind %q", s)
	}
	return k, nil
}

// UnlockCondition states when the gate may flip the asset open.
type UnlockCondition string

const (
	UnlockImmediate         UnlockCondition = "immediate"
	UnlockMilestoneComplete UnlockCondition = "milestone_complete"
	UnlockQuestComplete     UnlockCondition = "quest_complete"
	UnlockManual            UnlockCondition = "manual"
)

var validConditions = map[UnlockCondition]bool{
	UnlockImmediate:         true,
	UnlockMilestoneComplete: true,
	UnlockQuestComplete:     true,
	UnlockManual:            true,
}

// ParseUnlockCondition constructs an UnlockCondition from external input.
func ParseUnlockCondition(s string) (UnlockCondition, error) {
	c := UnlockCondition(s)
	if !validConditions[c] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid unlock condition %q", s)
	}
	return c, nil
}

// Media belongs to exactly one estate and optionally to one milestone.
// Unlocked is monotonic: once true it never reverts, even if the
// condition that flipped it could no longer be satisfied.
type Media struct {
	ID          id.MediaID
	EstateID    id.EstateID
	QuestID     *id.QuestID
	MilestoneID *id.MilestoneID

	Title        string
	Kind         Kind
	StorageRef   string
	ThumbnailRef string

	Condition  UnlockCondition
	Unlocked   bool
	UnlockedAt *time.Time

	CreatedAt time.Time
}

// Projection is the viewer-facing shape. For locked assets the storage and
// thumbnail references are omitted entirely, not blanked client-side; a
// locked asset's address must never cross the boundary.
type Projection struct {
	ID             id.MediaID `json:"id"`
	Kind           Kind       `json:"kind"`
	Title          string     `json:"title"`
	Unlocked       bool       `json:"unlocked"`
	UnlockedAt     *time.Time `json:"unlocked_at,omitempty"`
	MilestoneTitle string     `json:"milestone_title,omitempty"`
	StorageRef     string     `json:"storage_ref,omitempty"`
	ThumbnailRef   string     `json:"thumbnail_ref,omitempty"`
}

// ProjectForViewer masks locked assets for non-owner viewers. The owning
// benefactor always sees the full record.
func ProjectForViewer(m *Media, viewer id.Role, milestoneTitle string) Projection {
	p := Projection{
		ID:             m.ID,
		Kind:           m.Kind,
		Title:          m.Title,
		Unlocked:       m.Unlocked,
		MilestoneTitle: milestoneTitle,
	}
	if m.Unlocked || viewer == id.RoleBenefactor {
		p.StorageRef = m.StorageRef
		p.ThumbnailRef = m.ThumbnailRef
		p.UnlockedAt = m.UnlockedAt
	}
	return p
}
