//go:build integration

package invite_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"heirloom/internal/estate/invite"
	platformredis "heirloom/internal/platform/redis"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	store  *invite.RedisStore
	issuer *invite.Issuer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = invite.NewRedisStore(&platformredis.Client{Client: s.redis.Client})
	s.issuer = invite.NewIssuer(s.store, time.Hour)
}

func (s *RedisStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.redis.FlushAll(ctx)
	s.Require().NoError(err)
}

func beneficiaryRecord() invite.Record {
	return invite.Record{
		Kind:          invite.MemberBeneficiary,
		EstateID:      id.EstateID(uuid.New()),
		BeneficiaryID: id.BeneficiaryID(uuid.New()),
	}
}

// TestIssueRedeemRoundTrip verifies the full membership record survives the
// trip through Redis.
func (s *RedisStoreSuite) TestIssueRedeemRoundTrip() {
	ctx := context.Background()
	rec := beneficiaryRecord()

	code, err := s.issuer.Issue(ctx, rec)
	s.Require().NoError(err)
	s.NotEmpty(code)

	got, err := s.issuer.Redeem(ctx, code)
	s.Require().NoError(err)
	s.Equal(rec.Kind, got.Kind)
	s.Equal(rec.EstateID, got.EstateID)
	s.Equal(rec.BeneficiaryID, got.BeneficiaryID)
}

// TestRedeemIsSingleUse verifies GETDEL semantics: a second redemption of
// the same code fails even though the first succeeded.
func (s *RedisStoreSuite) TestRedeemIsSingleUse() {
	ctx := context.Background()

	code, err := s.issuer.Issue(ctx, beneficiaryRecord())
	s.Require().NoError(err)

	_, err = s.issuer.Redeem(ctx, code)
	s.Require().NoError(err)

	_, err = s.issuer.Redeem(ctx, code)
	s.ErrorIs(err, sentinel.ErrExpired)
}

// TestWrongSecretBurnsCode verifies a failed guess consumes the stored code,
// so the real secret no longer works either.
func (s *RedisStoreSuite) TestWrongSecretBurnsCode() {
	ctx := context.Background()

	code, err := s.issuer.Issue(ctx, beneficiaryRecord())
	s.Require().NoError(err)

	inviteID, _, ok := strings.Cut(code, ".")
	s.Require().True(ok)

	_, err = s.issuer.Redeem(ctx, inviteID+".not-the-secret")
	s.ErrorIs(err, sentinel.ErrExpired)

	_, err = s.issuer.Redeem(ctx, code)
	s.ErrorIs(err, sentinel.ErrExpired)
}

// TestExpiredCode verifies the key TTL enforces expiry.
func (s *RedisStoreSuite) TestExpiredCode() {
	ctx := context.Background()
	issuer := invite.NewIssuer(s.store, time.Second)

	code, err := issuer.Issue(ctx, invite.Record{
		Kind:      invite.MemberTrustee,
		EstateID:  id.EstateID(uuid.New()),
		TrusteeID: id.TrusteeID(uuid.New()),
	})
	s.Require().NoError(err)

	time.Sleep(1500 * time.Millisecond)

	_, err = issuer.Redeem(ctx, code)
	s.ErrorIs(err, sentinel.ErrExpired)
}

// TestTrusteeRecordRoundTrip verifies the trustee shape of the record.
func (s *RedisStoreSuite) TestTrusteeRecordRoundTrip() {
	ctx := context.Background()
	rec := invite.Record{
		Kind:      invite.MemberTrustee,
		EstateID:  id.EstateID(uuid.New()),
		TrusteeID: id.TrusteeID(uuid.New()),
	}

	code, err := s.issuer.Issue(ctx, rec)
	s.Require().NoError(err)

	got, err := s.issuer.Redeem(ctx, code)
	s.Require().NoError(err)
	s.Equal(rec.TrusteeID, got.TrusteeID)
	s.True(got.BeneficiaryID.IsNil())
}
