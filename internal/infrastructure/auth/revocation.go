package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList invalidates session tokens before they expire
type RevocationList interface {
	// RevokeToken revokes one token by JTI. ttl should be the token's remaining lifetime.
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error

	// RevokePrincipal revokes every token of a principal issued up to now
	RevokePrincipal(ctx context.Context, principalID string, ttl time.Duration) error

	// IsRevoked reports whether the token was revoked individually or through its principal
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

// RedisRevocationList stores revocations in Redis so every instance sees them
type RedisRevocationList struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRevocationList creates a revocation list with an existing Redis client
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{
		client:    client,
		keyPrefix: "tenantcore:session:revoked:",
	}
}

func (r *RedisRevocationList) jtiKey(jti string) string {
	return r.keyPrefix + "jti:" + jti
}

func (r *RedisRevocationList) principalKey(principalID string) string {
	return r.keyPrefix + "principal:" + principalID
}

// RevokeToken revokes one token by JTI
func (r *RedisRevocationList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// RevokePrincipal stores the revocation time; tokens issued at or before it are rejected
func (r *RedisRevocationList) RevokePrincipal(ctx context.Context, principalID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.principalKey(principalID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke principal sessions: %w", err)
	}
	return nil
}

// IsRevoked checks the token's JTI and its principal's revocation time in one round trip
func (r *RedisRevocationList) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	pipe := r.client.Pipeline()
	jtiCmd := pipe.Exists(ctx, r.jtiKey(claims.ID))
	principalCmd := pipe.Get(ctx, r.principalKey(claims.PrincipalID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}

	if jtiCmd.Val() > 0 {
		return true, nil
	}

	raw, err := principalCmd.Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check principal revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return claims.GetIssuedAtTime().Unix() <= revokedAt, nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList keeps revocations in process. Single-instance deployments and tests only.
type InMemoryRevocationList struct {
	mu         sync.Mutex
	tokens     map[string]time.Time // JTI -> expiry of the revocation
	principals map[string]time.Time // principal -> revocation time
}

// NewInMemoryRevocationList creates an empty in-memory revocation list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		tokens:     make(map[string]time.Time),
		principals: make(map[string]time.Time),
	}
}

// RevokeToken revokes one token by JTI
func (r *InMemoryRevocationList) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[jti] = time.Now().Add(ttl)
	return nil
}

// RevokePrincipal revokes every token of a principal issued up to now
func (r *InMemoryRevocationList) RevokePrincipal(_ context.Context, principalID string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.principals[principalID] = time.Now()
	return nil
}

// IsRevoked reports whether the token was revoked
func (r *InMemoryRevocationList) IsRevoked(_ context.Context, claims *Claims) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if expiry, ok := r.tokens[claims.ID]; ok {
		if time.Now().Before(expiry) {
			return true, nil
		}
		delete(r.tokens, claims.ID)
	}

	revokedAt, ok := r.principals[claims.PrincipalID]
	if !ok {
		return false, nil
	}
	// JWT timestamps have second precision
	return claims.GetIssuedAtTime().Unix() <= revokedAt.Unix(), nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)
