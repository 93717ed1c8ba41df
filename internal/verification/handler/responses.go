package handler

import (
	"time"

	"heirloom/internal/quest"
)

// MilestoneResponse is the wire shape of a milestone after a transition.
// Status here is the stored status; transitions never return derived values.
type MilestoneResponse struct {
	ID              string     `json:"id"`
	QuestID         string     `json:"quest_id"`
	OrderIndex      int        `json:"order_index"`
	Title           string     `json:"title"`
	Value           int64      `json:"value_cents"`
	Mode            string     `json:"verification_mode"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	VerifiedBy      *string    `json:"verified_by,omitempty"`
}

// FromMilestone maps a milestone onto its wire shape.
func FromMilestone(m *quest.Milestone) MilestoneResponse {
	out := MilestoneResponse{
		ID:              m.ID.String(),
		QuestID:         m.QuestID.String(),
		OrderIndex:      m.OrderIndex,
		Title:           m.Title,
		Value:           m.Value,
		Mode:            string(m.Mode),
		Status:          string(m.Status),
		RejectionReason: m.RejectionReason,
		StartedAt:       m.StartedAt,
		SubmittedAt:     m.SubmittedAt,
		VerifiedAt:      m.VerifiedAt,
	}
	if m.VerifiedBy != nil {
		s := m.VerifiedBy.String()
		out.VerifiedBy = &s
	}
	return out
}

// EvidenceResponse is the wire shape of one evidence entry.
type EvidenceResponse struct {
	ID            string    `json:"id"`
	MilestoneID   string    `json:"milestone_id"`
	SubmittedBy   string    `json:"submitted_by"`
	Kind          string    `json:"kind"`
	Ref           string    `json:"ref,omitempty"`
	Text          string    `json:"text,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CycleBoundary bool      `json:"cycle_boundary,omitempty"`
}

// FromEvidence maps an evidence entry onto its wire shape.
func FromEvidence(e *quest.Evidence) EvidenceResponse {
	return EvidenceResponse{
		ID:            e.ID.String(),
		MilestoneID:   e.MilestoneID.String(),
		SubmittedBy:   e.SubmittedBy.String(),
		Kind:          string(e.Kind),
		Ref:           e.Ref,
		Text:          e.Text,
		SubmittedAt:   e.SubmittedAt,
		CycleBoundary: e.CycleBoundary,
	}
}

// PendingReviewResponse is one trustee-queue row on the wire.
type PendingReviewResponse struct {
	QuestID    string             `json:"quest_id"`
	QuestTitle string             `json:"quest_title"`
	EstateID   string             `json:"estate_id"`
	Milestone  MilestoneResponse  `json:"milestone"`
	Evidence   []EvidenceResponse `json:"evidence"`
}

// FromPendingReview maps a queue row onto its wire shape.
func FromPendingReview(p *quest.PendingReview) PendingReviewResponse {
	out := PendingReviewResponse{
		QuestID:    p.Quest.ID.String(),
		QuestTitle: p.Quest.Title,
		EstateID:   p.Quest.EstateID.String(),
		Milestone:  FromMilestone(&p.Milestone),
		Evidence:   make([]EvidenceResponse, len(p.Evidence)),
	}
	for i := range p.Evidence {
		out.Evidence[i] = FromEvidence(&p.Evidence[i])
	}
	return out
}
