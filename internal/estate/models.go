// Package estate holds the estate container and its memberships: the owning
// benefactor, invited beneficiaries, and trustee grants.
package estate

import (
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// Status is the estate lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

var validStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusActive:    true,
	StatusPaused:    true,
	StatusCompleted: true,
	StatusArchived:  true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid estate status %q", s)
	}
	return st, nil
}

// Estate is the top-level container owned by exactly one benefactor.
type Estate struct {
	ID      id.EstateID
	OwnerID id.PrincipalID
	Name    string

	// DeclaredValue is informational only; quests carry the binding values.
	DeclaredValue *int64

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvitationStatus tracks a membership invitation, independent of any quest
// or milestone state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Beneficiary belongs to exactly one estate. PrincipalID is nil until the
// invitation is accepted, after which it links the external identity.
type Beneficiary struct {
	ID          id.BeneficiaryID
	EstateID    id.EstateID
	DisplayName string
	Email       string
	Invitation  InvitationStatus
	PrincipalID *id.PrincipalID

	// TrustTier feeds the auto-approval policy; empty means no tier.
	TrustTier string

	CreatedAt time.Time
}

// TrusteePermissions is the permission set a trustee carries on an estate.
type TrusteePermissions struct {
	CanVerify  bool
	CanEdit    bool
	CanViewAll bool
}

// Trustee belongs to exactly one estate.
type Trustee struct {
	ID          id.TrusteeID
	EstateID    id.EstateID
	DisplayName string
	Email       string
	Permissions TrusteePermissions
	Invitation  InvitationStatus
	PrincipalID *id.PrincipalID
	CreatedAt   time.Time
}

// Linked reports whether the trustee has accepted and is bound to the given
// principal.
func (t *Trustee) Linked(principal id.PrincipalID) bool {
	return t.Invitation == InvitationAccepted && t.PrincipalID != nil && *t.PrincipalID == principal
}

// Linked reports whether the beneficiary has accepted and is bound to the
// given principal.
func (b *Beneficiary) Linked(principal id.PrincipalID) bool {
	return b.Invitation == InvitationAccepted && b.PrincipalID != nil && *b.PrincipalID == principal
}
