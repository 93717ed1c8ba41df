package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "heirloom-test", "heirloom-api")
	principal := id.NewPrincipalID()

	token, err := svc.GenerateAccessToken(principal, id.RoleTrustee, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal, claims.PrincipalID)
	assert.Equal(t, id.RoleTrustee, claims.Role)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := NewService("test-signing-key", "heirloom-test", "heirloom-api")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(id.NewPrincipalID(), id.RoleBeneficiary, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("another-key", "heirloom-test", "heirloom-api")
		token, err := other.GenerateAccessToken(id.NewPrincipalID(), id.RoleBenefactor, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		require.Error(t, err)
	})
}
