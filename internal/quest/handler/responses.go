package handler

import (
	"time"

	"heirloom/internal/media"
	"heirloom/internal/quest"
	"heirloom/internal/quest/service"
)

// QuestResponse is the wire shape of a quest.
type QuestResponse struct {
	ID            string     `json:"id"`
	EstateID      string     `json:"estate_id"`
	BeneficiaryID string     `json:"beneficiary_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	TotalValue    int64      `json:"total_value_cents"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// FromQuest maps a domain quest onto its wire shape.
func FromQuest(q *quest.Quest) QuestResponse {
	return QuestResponse{
		ID:            q.ID.String(),
		EstateID:      q.EstateID.String(),
		BeneficiaryID: q.BeneficiaryID.String(),
		Title:         q.Title,
		Description:   q.Description,
		TotalValue:    q.TotalValue,
		Status:        string(q.Status),
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
		PublishedAt:   q.PublishedAt,
	}
}

// MilestoneResponse is the wire shape of a milestone. Status is the derived,
// externally visible status, never the raw stored one.
type MilestoneResponse struct {
	ID              string     `json:"id"`
	QuestID         string     `json:"quest_id"`
	OrderIndex      int        `json:"order_index"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Type            string     `json:"type"`
	Value           int64      `json:"value_cents"`
	Mode            string     `json:"verification_mode"`
	Instructions    string     `json:"instructions,omitempty"`
	Status          string     `json:"status"`
	Prerequisites   []string   `json:"prerequisites,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	VerifiedBy      *string    `json:"verified_by,omitempty"`
}

// FromMilestone maps a milestone onto its wire shape under the given
// externally visible status.
func FromMilestone(m *quest.Milestone, effective quest.MilestoneStatus) MilestoneResponse {
	out := MilestoneResponse{
		ID:              m.ID.String(),
		QuestID:         m.QuestID.String(),
		OrderIndex:      m.OrderIndex,
		Title:           m.Title,
		Description:     m.Description,
		Type:            m.Type,
		Value:           m.Value,
		Mode:            string(m.Mode),
		Instructions:    m.Instructions,
		Status:          string(effective),
		RejectionReason: m.RejectionReason,
		StartedAt:       m.StartedAt,
		SubmittedAt:     m.SubmittedAt,
		VerifiedAt:      m.VerifiedAt,
	}
	for _, p := range m.Prerequisites {
		out.Prerequisites = append(out.Prerequisites, p.String())
	}
	if m.VerifiedBy != nil {
		s := m.VerifiedBy.String()
		out.VerifiedBy = &s
	}
	return out
}

// QuestViewResponse is the full quest read model on the wire.
type QuestViewResponse struct {
	Quest          QuestResponse       `json:"quest"`
	Milestones     []MilestoneResponse `json:"milestones"`
	TotalValue     int64               `json:"total_value_cents"`
	UnlockedValue  int64               `json:"unlocked_value_cents"`
	RemainingValue int64               `json:"remaining_value_cents"`
}

// FromQuestView maps a quest view onto its wire shape.
func FromQuestView(v *service.QuestView) QuestViewResponse {
	out := QuestViewResponse{
		Quest:          FromQuest(&v.Quest),
		Milestones:     make([]MilestoneResponse, len(v.Milestones)),
		TotalValue:     v.TotalValue,
		UnlockedValue:  v.UnlockedValue,
		RemainingValue: v.RemainingValue,
	}
	for i := range v.Milestones {
		out.Milestones[i] = FromMilestone(&v.Milestones[i].Milestone, v.Milestones[i].EffectiveStatus)
	}
	return out
}

// BeneficiaryViewResponse is the beneficiary's quest view plus the estate's
// media projections, masked by lock state.
type BeneficiaryViewResponse struct {
	QuestViewResponse
	Media []media.Projection `json:"media"`
}

// FromBeneficiaryView maps a beneficiary view onto its wire shape.
func FromBeneficiaryView(v *service.BeneficiaryView) BeneficiaryViewResponse {
	return BeneficiaryViewResponse{
		QuestViewResponse: FromQuestView(&v.QuestView),
		Media:             v.Media,
	}
}

// SummaryResponse is the benefactor dashboard on the wire.
type SummaryResponse struct {
	Quests         []QuestViewResponse `json:"quests"`
	TotalValue     int64               `json:"total_value_cents"`
	UnlockedValue  int64               `json:"unlocked_value_cents"`
	RemainingValue int64               `json:"remaining_value_cents"`
}

// FromSummary maps an estate summary onto its wire shape.
func FromSummary(s *service.EstateSummary) SummaryResponse {
	out := SummaryResponse{
		Quests:         make([]QuestViewResponse, len(s.Quests)),
		TotalValue:     s.TotalValue,
		UnlockedValue:  s.UnlockedValue,
		RemainingValue: s.RemainingValue,
	}
	for i := range s.Quests {
		out.Quests[i] = FromQuestView(&s.Quests[i])
	}
	return out
}
