// Package service implements estate membership management: the benefactor's
// estate container, beneficiary and trustee invitations, and permission
// grants. Verification and quest authoring live in their own services.
package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"heirloom/internal/audit"
	"heirloom/internal/estate"
	"heirloom/internal/estate/invite"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/sentinel"
	txrunner "heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateEstate(ctx context.Context, e *estate.Estate) error
	FindEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error)
	FindEstateByOwner(ctx context.Context, owner id.PrincipalID) (*estate.Estate, error)
	UpdateEstate(ctx context.Context, e *estate.Estate) error

	CreateBeneficiary(ctx context.Context, b *estate.Beneficiary) error
	FindBeneficiary(ctx context.Context, beneficiaryID id.BeneficiaryID) (*estate.Beneficiary, error)
	FindBeneficiaryByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Beneficiary, error)
	ListBeneficiaries(ctx context.Context, estateID id.EstateID) ([]estate.Beneficiary, error)
	UpdateBeneficiary(ctx context.Context, b *estate.Beneficiary) error

	CreateTrustee(ctx context.Context, t *estate.Trustee) error
	FindTrustee(ctx context.Context, trusteeID id.TrusteeID) (*estate.Trustee, error)
	FindTrusteeByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error)
	ListTrustees(ctx context.Context, estateID id.EstateID) ([]estate.Trustee, error)
	UpdateTrustee(ctx context.Context, t *estate.Trustee) error
}

// Service orchestrates estate membership operations.
type Service struct {
	store   Store
	invites *invite.Issuer
	audit   *audit.Publisher
	tx      txrunner.Runner
	tracer  trace.Tracer
}

func New(store Store, invites *invite.Issuer, auditor *audit.Publisher, runner txrunner.Runner) *Service {
	return &Service{
		store:   store,
		invites: invites,
		audit:   auditor,
		tx:      runner,
		tracer:  otel.Tracer("estate"),
	}
}

var errNotPermitted = dErrors.New(dErrors.CodePermissionDenied, "not permitted")

// EnsureEstate returns the caller's estate, creating it on first access.
// Only benefactors own estates; one estate per benefactor.
func (s *Service) EnsureEstate(ctx context.Context, name string) (*estate.Estate, error) {
	ctx, span := s.tracer.Start(ctx, "estate.EnsureEstate")
	defer span.End()

	if requestcontext.Role(ctx) != id.RoleBenefactor {
		return nil, errNotPermitted
	}
	owner := requestcontext.PrincipalID(ctx)

	existing, err := s.store.FindEstateByOwner(ctx, owner)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}

	now := requestcontext.Now(ctx)
	e := &estate.Estate{
		ID:        id.NewEstateID(),
		OwnerID:   owner,
		Name:      name,
		Status:    estate.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateEstate(ctx, e); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "create estate", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionEstateCreated,
			Refs:   audit.EntityRefs{EstateID: e.ID},
			After:  map[string]any{"name": e.Name, "status": string(e.Status)},
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetEstate loads an estate the caller may see: the owner, or any accepted
// member of the estate.
func (s *Service) GetEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error) {
	e, err := s.store.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	if !s.isMember(ctx, e) {
		return nil, errNotPermitted
	}
	return e, nil
}

func (s *Service) isMember(ctx context.Context, e *estate.Estate) bool {
	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID == principal {
		return true
	}
	if _, err := s.store.FindBeneficiaryByPrincipal(ctx, e.ID, principal); err == nil {
		return true
	}
	if _, err := s.store.FindTrusteeByPrincipal(ctx, e.ID, principal); err == nil {
		return true
	}
	return false
}

// UpdateEstateParams carries the mutable estate fields.
type UpdateEstateParams struct {
	Name          string
	DeclaredValue *int64
}

// UpdateEstate changes name and declared value. Owner only.
func (s *Service) UpdateEstate(ctx context.Context, estateID id.EstateID, params UpdateEstateParams) (*estate.Estate, error) {
	e, err := s.ownedEstate(ctx, estateID)
	if err != nil {
		return nil, err
	}
	e.Name = params.Name
	e.DeclaredValue = params.DeclaredValue
	e.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateEstate(ctx, e); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "update estate", err)
	}
	return e, nil
}

// UpdateEstateStatus moves the estate between lifecycle states. Owner only.
func (s *Service) UpdateEstateStatus(ctx context.Context, estateID id.EstateID, to estate.Status) (*estate.Estate, error) {
	ctx, span := s.tracer.Start(ctx, "estate.UpdateEstateStatus")
	defer span.End()

	e, err := s.ownedEstate(ctx, estateID)
	if err != nil {
		return nil, err
	}
	from := e.Status
	if from == to {
		return e, nil
	}
	e.Status = to
	e.UpdatedAt = requestcontext.Now(ctx)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateEstate(ctx, e); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "update estate", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionEstateStatusChanged,
			Refs:   audit.EntityRefs{EstateID: e.ID},
			Before: map[string]any{"status": string(from)},
			After:  map[string]any{"status": string(to)},
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) ownedEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error) {
	e, err := s.store.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	if e.OwnerID != requestcontext.PrincipalID(ctx) {
		return nil, errNotPermitted
	}
	return e, nil
}

// InviteBeneficiaryParams describes the person being invited.
type InviteBeneficiaryParams struct {
	DisplayName string
	Email       string
	TrustTier   string
}

// InviteBeneficiary registers a pending beneficiary and mints a single-use
// invite code. The code is returned once and never stored in plaintext.
func (s *Service) InviteBeneficiary(ctx context.Context, estateID id.EstateID, params InviteBeneficiaryParams) (*estate.Beneficiary, string, error) {
	ctx, span := s.tracer.Start(ctx, "estate.InviteBeneficiary")
	defer span.End()

	e, err := s.ownedEstate(ctx, estateID)
	if err != nil {
		return nil, "", err
	}

	b := &estate.Beneficiary{
		ID:          id.NewBeneficiaryID(),
		EstateID:    e.ID,
		DisplayName: params.DisplayName,
		Email:       params.Email,
		Invitation:  estate.InvitationPending,
		TrustTier:   params.TrustTier,
		CreatedAt:   requestcontext.Now(ctx),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateBeneficiary(ctx, b); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "create beneficiary", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionBeneficiaryInvited,
			Refs:   audit.EntityRefs{EstateID: e.ID},
			After:  map[string]any{"beneficiary_id": b.ID.String(), "email": b.Email},
		})
	})
	if err != nil {
		return nil, "", err
	}

	code, err := s.invites.Issue(ctx, invite.Record{
		Kind:          invite.MemberBeneficiary,
		EstateID:      e.ID,
		BeneficiaryID: b.ID,
	})
	if err != nil {
		return nil, "", dErrors.Wrap(dErrors.CodeInternal, "issue invite", err)
	}
	return b, code, nil
}

// InviteTrusteeParams describes the trustee being invited and the
// permissions the grant carries.
type InviteTrusteeParams struct {
	DisplayName string
	Email       string
	Permissions estate.TrusteePermissions
}

// InviteTrustee registers a pending trustee and mints an invite code.
func (s *Service) InviteTrustee(ctx context.Context, estateID id.EstateID, params InviteTrusteeParams) (*estate.Trustee, string, error) {
	ctx, span := s.tracer.Start(ctx, "estate.InviteTrustee")
	defer span.End()

	e, err := s.ownedEstate(ctx, estateID)
	if err != nil {
		return nil, "", err
	}

	t := &estate.Trustee{
		ID:          id.NewTrusteeID(),
		EstateID:    e.ID,
		DisplayName: params.DisplayName,
		Email:       params.Email,
		Permissions: params.Permissions,
		Invitation:  estate.InvitationPending,
		CreatedAt:   requestcontext.Now(ctx),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateTrustee(ctx, t); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "create trustee", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionTrusteeInvited,
			Refs:   audit.EntityRefs{EstateID: e.ID},
			After: map[string]any{
				"trustee_id": t.ID.String(),
				"email":      t.Email,
				"can_verify": t.Permissions.CanVerify,
			},
		})
	})
	if err != nil {
		return nil, "", err
	}

	code, err := s.invites.Issue(ctx, invite.Record{
		Kind:      invite.MemberTrustee,
		EstateID:  e.ID,
		TrusteeID: t.ID,
	})
	if err != nil {
		return nil, "", dErrors.Wrap(dErrors.CodeInternal, "issue invite", err)
	}
	return t, code, nil
}

// Membership is what invite redemption resolves to.
type Membership struct {
	EstateID      id.EstateID
	BeneficiaryID *id.BeneficiaryID
	TrusteeID     *id.TrusteeID
}

// AcceptInvite redeems a code and links the membership to the calling
// principal. Expired, consumed, and malformed codes are indistinguishable.
func (s *Service) AcceptInvite(ctx context.Context, code string) (*Membership, error) {
	ctx, span := s.tracer.Start(ctx, "estate.AcceptInvite")
	defer span.End()
	return s.resolveInvite(ctx, code, true)
}

// DeclineInvite redeems a code and marks the membership declined. The code
// is consumed either way.
func (s *Service) DeclineInvite(ctx context.Context, code string) error {
	ctx, span := s.tracer.Start(ctx, "estate.DeclineInvite")
	defer span.End()
	_, err := s.resolveInvite(ctx, code, false)
	return err
}

func (s *Service) resolveInvite(ctx context.Context, code string, accept bool) (*Membership, error) {
	rec, err := s.invites.Redeem(ctx, code)
	if errors.Is(err, sentinel.ErrExpired) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invite code is invalid or expired")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "redeem invite", err)
	}

	principal := requestcontext.PrincipalID(ctx)
	status := estate.InvitationDeclined
	if accept {
		status = estate.InvitationAccepted
	}

	var membership *Membership
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		switch rec.Kind {
		case invite.MemberBeneficiary:
			b, err := s.store.FindBeneficiary(ctx, rec.BeneficiaryID)
			if err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "load beneficiary", err)
			}
			if b.Invitation != estate.InvitationPending {
				return dErrors.New(dErrors.CodeStateConflict, "already processed")
			}
			b.Invitation = status
			if accept {
				b.PrincipalID = &principal
			}
			if err := s.store.UpdateBeneficiary(ctx, b); err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "update beneficiary", err)
			}
			membership = &Membership{EstateID: b.EstateID, BeneficiaryID: &b.ID}
			action := audit.ActionBeneficiaryDeclined
			if accept {
				action = audit.ActionBeneficiaryAccepted
			}
			return s.audit.Record(ctx, audit.Entry{
				Action: action,
				Refs:   audit.EntityRefs{EstateID: b.EstateID},
				After:  map[string]any{"beneficiary_id": b.ID.String()},
			})
		case invite.MemberTrustee:
			t, err := s.store.FindTrustee(ctx, rec.TrusteeID)
			if err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "load trustee", err)
			}
			if t.Invitation != estate.InvitationPending {
				return dErrors.New(dErrors.CodeStateConflict, "already processed")
			}
			t.Invitation = status
			if accept {
				t.PrincipalID = &principal
			}
			if err := s.store.UpdateTrustee(ctx, t); err != nil {
				return dErrors.Wrap(dErrors.CodeInternal, "update trustee", err)
			}
			membership = &Membership{EstateID: t.EstateID, TrusteeID: &t.ID}
			action := audit.ActionTrusteeDeclined
			if accept {
				action = audit.ActionTrusteeAccepted
			}
			return s.audit.Record(ctx, audit.Entry{
				Action: action,
				Refs:   audit.EntityRefs{EstateID: t.EstateID},
				After:  map[string]any{"trustee_id": t.ID.String()},
			})
		default:
			return dErrors.Newf(dErrors.CodeInternal, "unknown invite kind %q", rec.Kind)
		}
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// UpdateTrusteePermissions changes a trustee's grant. Owner only.
func (s *Service) UpdateTrusteePermissions(ctx context.Context, trusteeID id.TrusteeID, perms estate.TrusteePermissions) (*estate.Trustee, error) {
	ctx, span := s.tracer.Start(ctx, "estate.UpdateTrusteePermissions")
	defer span.End()

	t, err := s.store.FindTrustee(ctx, trusteeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load trustee", err)
	}
	if _, err := s.ownedEstate(ctx, t.EstateID); err != nil {
		return nil, err
	}

	before := t.Permissions
	t.Permissions = perms
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateTrustee(ctx, t); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "update trustee", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			Action: audit.ActionTrusteeUpdated,
			Refs:   audit.EntityRefs{EstateID: t.EstateID},
			Before: map[string]any{"can_verify": before.CanVerify, "can_edit": before.CanEdit, "can_view_all": before.CanViewAll},
			After:  map[string]any{"can_verify": perms.CanVerify, "can_edit": perms.CanEdit, "can_view_all": perms.CanViewAll},
		})
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListBeneficiaries returns the estate's beneficiaries. Owner, or a trustee
// holding the view-all grant.
func (s *Service) ListBeneficiaries(ctx context.Context, estateID id.EstateID) ([]estate.Beneficiary, error) {
	if err := s.requireRoster(ctx, estateID); err != nil {
		return nil, err
	}
	out, err := s.store.ListBeneficiaries(ctx, estateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list beneficiaries", err)
	}
	return out, nil
}

// ListTrustees returns the estate's trustees under the same access rule.
func (s *Service) ListTrustees(ctx context.Context, estateID id.EstateID) ([]estate.Trustee, error) {
	if err := s.requireRoster(ctx, estateID); err != nil {
		return nil, err
	}
	out, err := s.store.ListTrustees(ctx, estateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list trustees", err)
	}
	return out, nil
}

func (s *Service) requireRoster(ctx context.Context, estateID id.EstateID) error {
	e, err := s.store.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return errNotPermitted
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}
	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID == principal {
		return nil
	}
	t, err := s.store.FindTrusteeByPrincipal(ctx, estateID, principal)
	if err == nil && t.Permissions.CanViewAll {
		return nil
	}
	return errNotPermitted
}
