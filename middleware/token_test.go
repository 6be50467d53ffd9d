package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
)

func registeredClaimsFor(userID uuid.UUID) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: userID.String()}
}

func TestTokenValidator(t *testing.T) {
	validator := NewTokenValidator("test-secret", "statusplatform")
	userID := uuid.New()
	projectID := uuid.New()
	labelID := uuid.New()

	issue := func(t *testing.T, v *TokenValidator, ttl time.Duration) string {
		t.Helper()
		token, err := v.IssueToken(userID, Claims{
			Email:      "dev@example.com",
			ProjectIDs: []string{projectID.String()},
			Grants: map[string][]GrantClaim{
				projectID.String(): {
					{Permission: "ProjectMember", LabelIDs: []string{labelID.String()}},
				},
			},
		}, ttl)
		require.NoError(t, err)
		return token
	}

	t.Run("round trip", func(t *testing.T) {
		token := issue(t, validator, time.Hour)

		claims, err := validator.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Equal(t, "dev@example.com", claims.Email)
		assert.Equal(t, []string{projectID.String()}, claims.ProjectIDs)
	})

	t.Run("expired token", func(t *testing.T) {
		token := issue(t, validator, -time.Minute)

		_, err := validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenValidator("other-secret", "statusplatform")
		token := issue(t, other, time.Hour)

		_, err := validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenValidator("test-secret", "someone-else")
		token := issue(t, other, time.Hour)

		_, err := validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := validator.ValidateToken(context.Background(), "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestCallerFromClaims(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()
	labelID := uuid.New()

	t.Run("grants and labels", func(t *testing.T) {
		validator := NewTokenValidator("test-secret", "statusplatform")
		token, err := validator.IssueToken(userID, Claims{
			ProjectIDs: []string{projectID.String()},
			Grants: map[string][]GrantClaim{
				projectID.String(): {
					{Permission: "ProjectMember", LabelIDs: []string{labelID.String()}},
					{Permission: "ProjectViewer"},
				},
			},
		}, time.Hour)
		require.NoError(t, err)

		claims, err := validator.ValidateToken(context.Background(), token)
		require.NoError(t, err)

		caller, err := CallerFromClaims(claims)
		require.NoError(t, err)

		require.NotNil(t, caller.UserID)
		assert.Equal(t, userID, *caller.UserID)
		assert.False(t, caller.IsRoot)
		assert.Equal(t, []uuid.UUID{projectID}, caller.GlobalGrant.ProjectIDs)

		grant := caller.ProjectGrants[projectID]
		require.NotNil(t, grant)
		require.Len(t, grant.Permissions, 2)
		assert.Equal(t, models.PermissionProjectMember, grant.Permissions[0].Permission)
		assert.Equal(t, []uuid.UUID{labelID}, grant.Permissions[0].LabelIDs)
		assert.Empty(t, grant.Permissions[1].LabelIDs)
	})

	t.Run("master admin becomes root", func(t *testing.T) {
		caller, err := CallerFromClaims(&Claims{
			RegisteredClaims: registeredClaimsFor(userID),
			IsMasterAdmin:    true,
		})
		require.NoError(t, err)
		assert.True(t, caller.IsRoot)
	})

	t.Run("malformed project id", func(t *testing.T) {
		_, err := CallerFromClaims(&Claims{
			RegisteredClaims: registeredClaimsFor(userID),
			ProjectIDs:       []string{"not-a-uuid"},
		})
		assert.Error(t, err)
	})
}
