package handler

import (
	"time"

	"heirloom/internal/estate"
	"heirloom/internal/estate/service"
)

// EstateResponse is the wire shape of an estate.
type EstateResponse struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	DeclaredValue *int64    `json:"declared_value,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromEstate maps a domain estate onto its wire shape.
func FromEstate(e *estate.Estate) EstateResponse {
	return EstateResponse{
		ID:            e.ID.String(),
		OwnerID:       e.OwnerID.String(),
		Name:          e.Name,
		DeclaredValue: e.DeclaredValue,
		Status:        string(e.Status),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// BeneficiaryResponse is the wire shape of a beneficiary membership.
type BeneficiaryResponse struct {
	ID          string    `json:"id"`
	EstateID    string    `json:"estate_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Invitation  string    `json:"invitation"`
	TrustTier   string    `json:"trust_tier,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromBeneficiary maps a domain beneficiary onto its wire shape.
func FromBeneficiary(b *estate.Beneficiary) BeneficiaryResponse {
	return BeneficiaryResponse{
		ID:          b.ID.String(),
		EstateID:    b.EstateID.String(),
		DisplayName: b.DisplayName,
		Email:       b.Email,
		Invitation:  string(b.Invitation),
		TrustTier:   b.TrustTier,
		CreatedAt:   b.CreatedAt,
	}
}

// TrusteeResponse is the wire shape of a trustee membership.
type TrusteeResponse struct {
	ID          string             `json:"id"`
	EstateID    string             `json:"estate_id"`
	DisplayName string             `json:"display_name"`
	Email       string             `json:"email"`
	Permissions PermissionsRequest `json:"permissions"`
	Invitation  string             `json:"invitation"`
	CreatedAt   time.Time          `json:"created_at"`
}

// FromTrustee maps a domain trustee onto its wire shape.
func FromTrustee(t *estate.Trustee) TrusteeResponse {
	return TrusteeResponse{
		ID:          t.ID.String(),
		EstateID:    t.EstateID.String(),
		DisplayName: t.DisplayName,
		Email:       t.Email,
		Permissions: PermissionsRequest{
			CanVerify:  t.Permissions.CanVerify,
			CanEdit:    t.Permissions.CanEdit,
			CanViewAll: t.Permissions.CanViewAll,
		},
		Invitation: string(t.Invitation),
		CreatedAt:  t.CreatedAt,
	}
}

// InviteBeneficiaryResponse carries the new membership and its one-shot code.
type InviteBeneficiaryResponse struct {
	Beneficiary BeneficiaryResponse `json:"beneficiary"`
	InviteCode  string              `json:"invite_code"`
}

// InviteTrusteeResponse carries the new membership and its one-shot code.
type InviteTrusteeResponse struct {
	Trustee    TrusteeResponse `json:"trustee"`
	InviteCode string          `json:"invite_code"`
}

// MembershipResponse reports what an accepted invite resolved to.
type MembershipResponse struct {
	EstateID      string  `json:"estate_id"`
	BeneficiaryID *string `json:"beneficiary_id,omitempty"`
	TrusteeID     *string `json:"trustee_id,omitempty"`
}

// FromMembership maps an invite resolution onto its wire shape.
func FromMembership(m *service.Membership) MembershipResponse {
	out := MembershipResponse{EstateID: m.EstateID.String()}
	if m.BeneficiaryID != nil {
		s := m.BeneficiaryID.String()
		out.BeneficiaryID = &s
	}
	if m.TrusteeID != nil {
		s := m.TrusteeID.String()
		out.TrusteeID = &s
	}
	return out
}
