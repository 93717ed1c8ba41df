package handler

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"heirloom/internal/estate"
)

// EnsureEstateRequest creates or returns the caller's estate.
type EnsureEstateRequest struct {
	Name string `json:"name"`
}

// Validate checks the request payload.
func (r *EnsureEstateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// UpdateEstateRequest carries the mutable estate fields.
type UpdateEstateRequest struct {
	Name          string `json:"name"`
	DeclaredValue *int64 `json:"declared_value,omitempty"`
}

// Validate checks the request payload.
func (r *UpdateEstateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.DeclaredValue, validation.Min(int64(0))),
	)
}

// UpdateStatusRequest moves the estate through its lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status"`

	parsed estate.Status
}

// Validate checks the request payload and parses the target status.
func (r *UpdateStatusRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required),
	); err != nil {
		return err
	}
	st, err := estate.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsed = st
	return nil
}

// ParsedStatus returns the status parsed during Validate.
func (r *UpdateStatusRequest) ParsedStatus() estate.Status { return r.parsed }

// InviteBeneficiaryRequest registers a beneficiary and mints an invite code.
type InviteBeneficiaryRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	TrustTier   string `json:"trust_tier,omitempty"`
}

// Validate checks the request payload.
func (r *InviteBeneficiaryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.TrustTier, validation.Length(0, 50)),
	)
}

// PermissionsRequest is the trustee permission set as wire payload.
type PermissionsRequest struct {
	CanVerify  bool `json:"can_verify"`
	CanEdit    bool `json:"can_edit"`
	CanViewAll bool `json:"can_view_all"`
}

func (r *PermissionsRequest) toDomain() estate.TrusteePermissions {
	return estate.TrusteePermissions{
		CanVerify:  r.CanVerify,
		CanEdit:    r.CanEdit,
		CanViewAll: r.CanViewAll,
	}
}

// Validate checks the request payload.
func (r *PermissionsRequest) Validate() error { return nil }

// InviteTrusteeRequest registers a trustee and mints an invite code.
type InviteTrusteeRequest struct {
	DisplayName string             `json:"display_name"`
	Email       string             `json:"email"`
	Permissions PermissionsRequest `json:"permissions"`
}

// Validate checks the request payload.
func (r *InviteTrusteeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// InviteCodeRequest redeems an invite code.
type InviteCodeRequest struct {
	Code string `json:"code"`
}

// Validate checks the request payload.
func (r *InviteCodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code, validation.Required, validation.Length(1, 200)),
	)
}
