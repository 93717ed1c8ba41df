package handler

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"heirloom/internal/media"
	"heirloom/internal/media/service"
	id "heirloom/pkg/domain"
)

// RegisterMediaRequest binds a new locked asset to an estate.
type RegisterMediaRequest struct {
	Title        string  `json:"title"`
	Kind         string  `json:"kind"`
	StorageRef   string  `json:"storage_ref"`
	ThumbnailRef string  `json:"thumbnail_ref,omitempty"`
	Condition    string  `json:"unlock_condition"`
	MilestoneID  *string `json:"milestone_id,omitempty"`

	parsed service.RegisterParams
}

// Validate checks the request payload and parses the kind, condition, and
// optional milestone binding.
func (r *RegisterMediaRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Kind, validation.Required),
		validation.Field(&r.StorageRef, validation.Required, validation.Length(1, 1000)),
		validation.Field(&r.ThumbnailRef, validation.Length(0, 1000)),
		validation.Field(&r.Condition, validation.Required),
	); err != nil {
		return err
	}

	kind, err := media.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	condition, err := media.ParseUnlockCondition(r.Condition)
	if err != nil {
		return err
	}
	r.parsed = service.RegisterParams{
		Title:        r.Title,
		Kind:         kind,
		StorageRef:   r.StorageRef,
		ThumbnailRef: r.ThumbnailRef,
		Condition:    condition,
	}
	if r.MilestoneID != nil {
		mID, err := id.ParseMilestoneID(*r.MilestoneID)
		if err != nil {
			return err
		}
		r.parsed.MilestoneID = &mID
	}
	return nil
}

// ParsedParams returns the registration parsed during Validate.
func (r *RegisterMediaRequest) ParsedParams() service.RegisterParams { return r.parsed }
