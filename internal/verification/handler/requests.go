package handler

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"heirloom/internal/quest"
	"heirloom/internal/verification"
)

// SubmitRequest sends a milestone for review, optionally attaching evidence.
type SubmitRequest struct {
	Evidence *EvidencePayload `json:"evidence,omitempty"`

	parsed *verification.EvidenceInput
}

// EvidencePayload is one piece of submitted proof.
type EvidencePayload struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref,omitempty"`
	Text string `json:"text,omitempty"`
}

// Validate checks the payload and parses the evidence kind when present.
func (r *SubmitRequest) Validate() error {
	if r.Evidence == nil {
		return nil
	}
	if err := validation.ValidateStruct(r.Evidence,
		validation.Field(&r.Evidence.Kind, validation.Required),
		validation.Field(&r.Evidence.Ref, validation.Length(0, 1000)),
		validation.Field(&r.Evidence.Text, validation.Length(0, 10000)),
	); err != nil {
		return err
	}
	kind, err := quest.ParseEvidenceKind(r.Evidence.Kind)
	if err != nil {
		return err
	}
	r.parsed = &verification.EvidenceInput{
		Kind: kind,
		Ref:  r.Evidence.Ref,
		Text: r.Evidence.Text,
	}
	return nil
}

// ParsedEvidence returns the evidence parsed during Validate, nil when the
// submission carried none.
func (r *SubmitRequest) ParsedEvidence() *verification.EvidenceInput { return r.parsed }

// RejectRequest sends a pending milestone back with a reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Validate checks the request payload.
func (r *RejectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 2000)),
	)
}
