package domain

import dErrors "heirloom/pkg/domain-errors"

// Role identifies how a principal relates to an estate. A principal may hold
// different roles on different estates; the role in a token scopes what the
// request may attempt, ownership checks still happen per entity.
//
// Usage: construct via ParseRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Role string

const (
	RoleBenefactor  Role = "benefactor"
	RoleBeneficiary Role = "beneficiary"
	RoleTrustee     Role = "trustee"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleBenefactor:  true,
	RoleBeneficiary: true,
	RoleTrustee:     true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeBadRequest when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "role cannot be empty")
	}
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool { return validRoles[r] }

// String returns the string representation of the role.
func (r Role) String() string { return string(r) }
