package handler

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"heirloom/internal/quest"
	"heirloom/internal/quest/service"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// CreateQuestRequest registers a draft quest for a beneficiary.
type CreateQuestRequest struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`

	parsedBeneficiary id.BeneficiaryID
}

// Validate checks the request payload and parses the beneficiary ID.
func (r *CreateQuestRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.BeneficiaryID, validation.Required),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
	); err != nil {
		return err
	}
	bID, err := id.ParseBeneficiaryID(r.BeneficiaryID)
	if err != nil {
		return err
	}
	r.parsedBeneficiary = bID
	return nil
}

// ParsedBeneficiaryID returns the beneficiary ID parsed during Validate.
func (r *CreateQuestRequest) ParsedBeneficiaryID() id.BeneficiaryID { return r.parsedBeneficiary }

// MilestoneEntry is one milestone in a batch replace. Prerequisites refer to
// sibling entries by position in the batch.
type MilestoneEntry struct {
	ID            *string `json:"id,omitempty"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	Type          string  `json:"type"`
	Value         int64   `json:"value_cents"`
	Mode          string  `json:"verification_mode"`
	Instructions  string  `json:"instructions,omitempty"`
	Prerequisites []int   `json:"prerequisites,omitempty"`
}

// Validate checks a single batch entry.
func (e MilestoneEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Type, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.Value, validation.Min(int64(0))),
		validation.Field(&e.Mode, validation.Required),
	)
}

// ReplaceMilestonesRequest swaps a quest's milestone set atomically.
type ReplaceMilestonesRequest struct {
	Milestones []MilestoneEntry `json:"milestones"`

	parsed []service.MilestoneInput
}

// Validate checks every entry and parses IDs and verification modes.
func (r *ReplaceMilestonesRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Milestones, validation.Required),
	); err != nil {
		return err
	}

	r.parsed = make([]service.MilestoneInput, 0, len(r.Milestones))
	for i, entry := range r.Milestones {
		if err := entry.Validate(); err != nil {
			return dErrors.Wrapf(dErrors.CodeValidation, err, "milestone %d", i)
		}
		mode, err := quest.ParseVerificationMode(entry.Mode)
		if err != nil {
			return err
		}
		input := service.MilestoneInput{
			Title:         entry.Title,
			Description:   entry.Description,
			Type:          entry.Type,
			Value:         entry.Value,
			Mode:          mode,
			Instructions:  entry.Instructions,
			Prerequisites: entry.Prerequisites,
		}
		if entry.ID != nil {
			mID, err := id.ParseMilestoneID(*entry.ID)
			if err != nil {
				return err
			}
			input.ID = &mID
		}
		r.parsed = append(r.parsed, input)
	}
	return nil
}

// ParsedInputs returns the batch parsed during Validate.
func (r *ReplaceMilestonesRequest) ParsedInputs() []service.MilestoneInput { return r.parsed }
