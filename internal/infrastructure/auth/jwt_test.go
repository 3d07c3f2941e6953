package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantcore/backend/internal/infrastructure/config"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService()
	principalID := uuid.New()
	tenantID := uuid.New()

	token, err := svc.Issue(IssueInput{PrincipalID: principalID, SessionTenantID: tenantID})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	claims, err := svc.ValidateAccessToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, principalID.String(), claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)

	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, principalID, p.ID)
	assert.Equal(t, tenantID, p.SessionTenantID)
	assert.False(t, p.PlatformAdmin)
}

func TestJWTService_UnboundSession(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.Issue(IssueInput{PrincipalID: uuid.New(), PlatformAdmin: true})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token.Token)
	require.NoError(t, err)
	assert.Empty(t, claims.TenantID)

	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, p.SessionTenantID)
	assert.True(t, p.PlatformAdmin)
}

func TestJWTService_IssueRequiresPrincipal(t *testing.T) {
	_, err := newTestJWTService().Issue(IssueInput{})
	assert.ErrorIs(t, err, ErrMissingPrincipalID)
}

func TestJWTService_ValidateRejects(t *testing.T) {
	svc := newTestJWTService()

	sign := func(claims *Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() *Claims {
		now := time.Now()
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Issuer:    "test-issuer",
				Audience:  jwt.ClaimStrings{"test-issuer"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
			PrincipalID: uuid.NewString(),
			TokenType:   TokenTypeAccess,
		}
	}

	tests := []struct {
		name  string
		token func() string
		want  error
	}{
		{
			name:  "garbage",
			token: func() string { return "not.a.token" },
			want:  ErrInvalidToken,
		},
		{
			name: "expired",
			token: func() string {
				c := base()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return sign(c, "test-secret-key-at-least-32-chars")
			},
			want: ErrExpiredToken,
		},
		{
			name: "different secret",
			token: func() string {
				return sign(base(), "another-secret-key-at-least-32-ch")
			},
			want: ErrInvalidToken,
		},
		{
			name: "different issuer",
			token: func() string {
				c := base()
				c.Issuer = "someone-else"
				return sign(c, "test-secret-key-at-least-32-chars")
			},
			want: ErrInvalidToken,
		},
		{
			name: "wrong token type",
			token: func() string {
				c := base()
				c.TokenType = "refresh"
				return sign(c, "test-secret-key-at-least-32-chars")
			},
			want: ErrInvalidTokenType,
		},
		{
			name: "missing principal",
			token: func() string {
				c := base()
				c.PrincipalID = ""
				return sign(c, "test-secret-key-at-least-32-chars")
			},
			want: ErrMissingPrincipalID,
		},
		{
			name: "malformed tenant",
			token: func() string {
				c := base()
				c.TenantID = "acme"
				return sign(c, "test-secret-key-at-least-32-chars")
			},
			want: ErrInvalidClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClaims_GetRemainingTTL(t *testing.T) {
	assert.Zero(t, (&Claims{}).GetRemainingTTL())

	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}
	assert.Zero(t, expired.GetRemainingTTL())

	live := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	assert.InDelta(t, time.Hour.Seconds(), live.GetRemainingTTL().Seconds(), 5)
}

func TestInMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	svc := newTestJWTService()
	principalID := uuid.New()

	validate := func() *Claims {
		token, err := svc.Issue(IssueInput{PrincipalID: principalID})
		require.NoError(t, err)
		claims, err := svc.ValidateAccessToken(token.Token)
		require.NoError(t, err)
		return claims
	}

	t.Run("single token", func(t *testing.T) {
		list := NewInMemoryRevocationList()
		claims := validate()

		revoked, err := list.IsRevoked(ctx, claims)
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, list.RevokeToken(ctx, claims.ID, time.Minute))
		revoked, err = list.IsRevoked(ctx, claims)
		require.NoError(t, err)
		assert.True(t, revoked)

		other := validate()
		revoked, err = list.IsRevoked(ctx, other)
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("expired revocation is forgotten", func(t *testing.T) {
		list := NewInMemoryRevocationList()
		claims := validate()

		require.NoError(t, list.RevokeToken(ctx, claims.ID, -time.Second))
		revoked, err := list.IsRevoked(ctx, claims)
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("every session of a principal", func(t *testing.T) {
		list := NewInMemoryRevocationList()
		first := validate()
		second := validate()

		require.NoError(t, list.RevokePrincipal(ctx, principalID.String(), time.Minute))

		for _, c := range []*Claims{first, second} {
			revoked, err := list.IsRevoked(ctx, c)
			require.NoError(t, err)
			assert.True(t, revoked)
		}
	})
}
