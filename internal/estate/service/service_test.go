package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"heirloom/internal/audit"
	auditmem "heirloom/internal/audit/store/memory"
	"heirloom/internal/estate"
	"heirloom/internal/estate/invite"
	"heirloom/internal/estate/store"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	txrunner "heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	svc        *Service
	store      *store.Memory
	auditStore *auditmem.Store
	benefactor id.PrincipalID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.auditStore = auditmem.New()
	s.benefactor = id.NewPrincipalID()
	s.svc = New(
		s.store,
		invite.NewIssuer(invite.NewMemoryStore(), time.Hour),
		audit.NewPublisher(s.auditStore),
		txrunner.NopRunner{},
	)
}

func (s *ServiceSuite) asBenefactor() context.Context {
	return requestcontext.WithPrincipal(context.Background(), s.benefactor, id.RoleBenefactor)
}

func (s *ServiceSuite) as(principal id.PrincipalID, role id.Role) context.Context {
	return requestcontext.WithPrincipal(context.Background(), principal, role)
}

func (s *ServiceSuite) auditActions() []audit.Action {
	entries := s.auditStore.All()
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestEnsureEstateCreatesOnce() {
	ctx := s.asBenefactor()

	first, err := s.svc.EnsureEstate(ctx, "Hargrove estate")
	s.Require().NoError(err)
	s.Equal(s.benefactor, first.OwnerID)
	s.Equal(estate.StatusActive, first.Status)

	second, err := s.svc.EnsureEstate(ctx, "ignored on repeat")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal("Hargrove estate", second.Name)

	s.Equal([]audit.Action{audit.ActionEstateCreated}, s.auditActions())
}

func (s *ServiceSuite) TestEnsureEstateRejectsNonBenefactor() {
	ctx := s.as(id.NewPrincipalID(), id.RoleBeneficiary)
	_, err := s.svc.EnsureEstate(ctx, "nope")
	s.Equal(dErrors.CodePermissionDenied, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestInviteAndAcceptBeneficiary() {
	ctx := s.asBenefactor()
	e, err := s.svc.EnsureEstate(ctx, "estate")
	s.Require().NoError(err)

	b, code, err := s.svc.InviteBeneficiary(ctx, e.ID, InviteBeneficiaryParams{
		DisplayName: "June",
		Email:       "june@example.com",
		TrustTier:   "high",
	})
	s.Require().NoError(err)
	s.NotEmpty(code)
	s.Equal(estate.InvitationPending, b.Invitation)

	junePrincipal := id.NewPrincipalID()
	membership, err := s.svc.AcceptInvite(s.as(junePrincipal, id.RoleBeneficiary), code)
	s.Require().NoError(err)
	s.Require().NotNil(membership.BeneficiaryID)
	s.Equal(b.ID, *membership.BeneficiaryID)

	linked, err := s.store.FindBeneficiaryByPrincipal(context.Background(), e.ID, junePrincipal)
	s.Require().NoError(err)
	s.Equal(estate.InvitationAccepted, linked.Invitation)
	s.Equal("high", linked.TrustTier)

	// Second redemption of the same code fails.
	_, err = s.svc.AcceptInvite(s.as(id.NewPrincipalID(), id.RoleBeneficiary), code)
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestDeclineInvite() {
	ctx := s.asBenefactor()
	e, err := s.svc.EnsureEstate(ctx, "estate")
	s.Require().NoError(err)

	t, code, err := s.svc.InviteTrustee(ctx, e.ID, InviteTrusteeParams{
		DisplayName: "Marcus",
		Email:       "marcus@example.com",
		Permissions: estate.TrusteePermissions{CanVerify: true},
	})
	s.Require().NoError(err)

	err = s.svc.DeclineInvite(s.as(id.NewPrincipalID(), id.RoleTrustee), code)
	s.Require().NoError(err)

	got, err := s.store.FindTrustee(context.Background(), t.ID)
	s.Require().NoError(err)
	s.Equal(estate.InvitationDeclined, got.Invitation)
	s.Nil(got.PrincipalID)
}

func (s *ServiceSuite) TestInviteRequiresOwner() {
	ctx := s.asBenefactor()
	e, err := s.svc.EnsureEstate(ctx, "estate")
	s.Require().NoError(err)

	stranger := s.as(id.NewPrincipalID(), id.RoleBenefactor)
	_, _, err = s.svc.InviteBeneficiary(stranger, e.ID, InviteBeneficiaryParams{DisplayName: "x", Email: "x@example.com"})
	s.Equal(dErrors.CodePermissionDenied, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestUpdateTrusteePermissions() {
	ctx := s.asBenefactor()
	e, err := s.svc.EnsureEstate(ctx, "estate")
	s.Require().NoError(err)

	t, _, err := s.svc.InviteTrustee(ctx, e.ID, InviteTrusteeParams{
		DisplayName: "Marcus",
		Email:       "marcus@example.com",
		Permissions: estate.TrusteePermissions{CanVerify: true},
	})
	s.Require().NoError(err)

	updated, err := s.svc.UpdateTrusteePermissions(ctx, t.ID, estate.TrusteePermissions{
		CanVerify:  true,
		CanViewAll: true,
	})
	s.Require().NoError(err)
	s.True(updated.Permissions.CanViewAll)

	s.Contains(s.auditActions(), audit.ActionTrusteeUpdated)
}

func (s *ServiceSuite) TestRosterAccess() {
	ctx := s.asBenefactor()
	e, err := s.svc.EnsureEstate(ctx, "estate")
	s.Require().NoError(err)

	_, _, err = s.svc.InviteBeneficiary(ctx, e.ID, InviteBeneficiaryParams{DisplayName: "June", Email: "june@example.com"})
	s.Require().NoError(err)

	// Owner sees the roster.
	bs, err := s.svc.ListBeneficiaries(ctx, e.ID)
	s.Require().NoError(err)
	s.Len(bs, 1)

	// A trustee without the view-all grant does not.
	_, code, err := s.svc.InviteTrustee(ctx, e.ID, InviteTrusteeParams{
		DisplayName: "Marcus",
		Email:       "marcus@example.com",
		Permissions: estate.TrusteePermissions{CanVerify: true},
	})
	s.Require().NoError(err)
	trusteePrincipal := id.NewPrincipalID()
	trusteeCtx := s.as(trusteePrincipal, id.RoleTrustee)
	_, err = s.svc.AcceptInvite(trusteeCtx, code)
	s.Require().NoError(err)

	_, err = s.svc.ListBeneficiaries(trusteeCtx, e.ID)
	s.Equal(dErrors.CodePermissionDenied, dErrors.CodeOf(err))

	// Strangers get the same masked answer as a missing estate.
	_, err = s.svc.ListTrustees(s.as(id.NewPrincipalID(), id.RoleTrustee), e.ID)
	s.Equal(dErrors.CodePermissionDenied, dErrors.CodeOf(err))
	_, err = s.svc.ListTrustees(ctx, id.NewEstateID())
	s.Equal(dErrors.CodePermissionDenied, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestUpdateEstateStatusAudited() {
	ctx := s.asBenefactor()
	e, err := s.svc.EnsureEstate(ctx, "estate")
	s.Require().NoError(err)

	updated, err := s.svc.UpdateEstateStatus(ctx, e.ID, estate.StatusPaused)
	s.Require().NoError(err)
	s.Equal(estate.StatusPaused, updated.Status)
	s.Contains(s.auditActions(), audit.ActionEstateStatusChanged)
}
