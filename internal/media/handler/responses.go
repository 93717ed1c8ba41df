package handler

import (
	"time"

	"heirloom/internal/media"
)

// MediaResponse is the owner-facing wire shape of an asset. Non-owner reads
// go through the masked projection instead.
type MediaResponse struct {
	ID           string     `json:"id"`
	EstateID     string     `json:"estate_id"`
	QuestID      *string    `json:"quest_id,omitempty"`
	MilestoneID  *string    `json:"milestone_id,omitempty"`
	Title        string     `json:"title"`
	Kind         string     `json:"kind"`
	StorageRef   string     `json:"storage_ref"`
	ThumbnailRef string     `json:"thumbnail_ref,omitempty"`
	Condition    string     `json:"unlock_condition"`
	Unlocked     bool       `json:"unlocked"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FromMedia maps a domain asset onto its owner-facing wire shape.
func FromMedia(m *media.Media) MediaResponse {
	out := MediaResponse{
		ID:           m.ID.String(),
		EstateID:     m.EstateID.String(),
		Title:        m.Title,
		Kind:         string(m.Kind),
		StorageRef:   m.StorageRef,
		ThumbnailRef: m.ThumbnailRef,
		Condition:    string(m.Condition),
		Unlocked:     m.Unlocked,
		UnlockedAt:   m.UnlockedAt,
		CreatedAt:    m.CreatedAt,
	}
	if m.QuestID != nil {
		s := m.QuestID.String()
		out.QuestID = &s
	}
	if m.MilestoneID != nil {
		s := m.MilestoneID.String()
		out.MilestoneID = &s
	}
	return out
}
