// Package auth issues and validates session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/infrastructure/config"
)

// TokenType represents the type of JWT token
type TokenType string

const TokenTypeAccess TokenType = "access"

// Common errors
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidTokenType   = errors.New("invalid token type")
	ErrInvalidClaims      = errors.New("invalid token claims")
	ErrTokenNotYetValid   = errors.New("token is not yet valid")
	ErrMissingPrincipalID = errors.New("missing principal_id in claims")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// Claims represents the session claims. TenantID is empty for sessions not bound to a tenant.
type Claims struct {
	jwt.RegisteredClaims
	PrincipalID   string    `json:"principal_id"`
	TenantID      string    `json:"tenant_id,omitempty"`
	PlatformAdmin bool      `json:"platform_admin,omitempty"`
	TokenType     TokenType `json:"token_type"`
}

// AccessToken is a signed session token
type AccessToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"` // Bearer
}

// JWTService handles JWT token operations
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
	}
}

// IssueInput contains input for token generation
type IssueInput struct {
	PrincipalID uuid.UUID
	// SessionTenantID binds the session to one tenant; uuid.Nil leaves it unbound
	SessionTenantID uuid.UUID
	PlatformAdmin   bool
}

// Issue signs an access token for a principal
func (s *JWTService) Issue(input IssueInput) (*AccessToken, error) {
	if input.PrincipalID == uuid.Nil {
		return nil, ErrMissingPrincipalID
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.PrincipalID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		PrincipalID:   input.PrincipalID.String(),
		PlatformAdmin: input.PlatformAdmin,
		TokenType:     TokenTypeAccess,
	}
	if input.SessionTenantID != uuid.Nil {
		claims.TenantID = input.SessionTenantID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &AccessToken{
		Token:     token,
		ExpiresAt: now.Add(s.expiration),
		TokenType: "Bearer",
	}, nil
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	if claims.PrincipalID == "" {
		return nil, ErrMissingPrincipalID
	}
	if _, err := claims.Principal(); err != nil {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// Principal converts the claims to the authenticated caller
func (c *Claims) Principal() (identity.Principal, error) {
	id, err := uuid.Parse(c.PrincipalID)
	if err != nil {
		return identity.Principal{}, err
	}
	p := identity.Principal{ID: id, PlatformAdmin: c.PlatformAdmin}
	if c.TenantID != "" {
		p.SessionTenantID, err = uuid.Parse(c.TenantID)
		if err != nil {
			return identity.Principal{}, err
		}
	}
	return p, nil
}

// GetIssuedAtTime returns the token's issued-at time as time.Time
func (c *Claims) GetIssuedAtTime() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// GetRemainingTTL returns the remaining time until the token expires
func (c *Claims) GetRemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(c.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetAccessTokenExpiration returns the access token expiration duration
func (s *JWTService) GetAccessTokenExpiration() time.Duration {
	return s.expiration
}
