package cache

import (
	"fmt"

	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RegistryCacheFactory builds the registry cache and its cross-instance invalidation from configuration
type RegistryCacheFactory struct {
	redisConfig            config.RedisConfig
	tenancyConfig          config.TenancyConfig
	logger                 *zap.Logger
	allowLocalOnlyFallback bool
}

// RegistryCacheFactoryOption is a functional option for configuring the factory
type RegistryCacheFactoryOption func(*RegistryCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RegistryCacheFactoryOption {
	return func(f *RegistryCacheFactory) {
		f.logger = logger
	}
}

// WithLocalOnlyFallback controls whether an unreachable Redis leaves invalidation local to this instance.
// Default is true; other instances then converge within the cache TTL.
func WithLocalOnlyFallback(allow bool) RegistryCacheFactoryOption {
	return func(f *RegistryCacheFactory) {
		f.allowLocalOnlyFallback = allow
	}
}

// NewRegistryCacheFactory creates a new factory
func NewRegistryCacheFactory(redisCfg config.RedisConfig, tenancyCfg config.TenancyConfig, opts ...RegistryCacheFactoryOption) *RegistryCacheFactory {
	f := &RegistryCacheFactory{
		redisConfig:            redisCfg,
		tenancyConfig:          tenancyCfg,
		logger:                 zap.NewNop(),
		allowLocalOnlyFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateSnapshotCache creates the in-process registry cache
func (f *RegistryCacheFactory) CreateSnapshotCache() (*RistrettoSnapshotCache, error) {
	c, err := NewRistrettoSnapshotCache(f.tenancyConfig.CacheMaxEntries, f.tenancyConfig.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry cache: %w", err)
	}
	return c, nil
}

// CreateInvalidator returns the Redis invalidator, or nil when fan-out is disabled
// or Redis is unreachable and the local-only fallback is allowed
func (f *RegistryCacheFactory) CreateInvalidator() (*RedisRegistryInvalidator, error) {
	if !f.tenancyConfig.InvalidationEnabled {
		f.logger.Info("Registry invalidation fan-out disabled; invalidations stay local")
		return nil, nil
	}

	inv, err := NewRedisRegistryInvalidator(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	},
		WithInvalidatorChannel(f.tenancyConfig.InvalidationChannel),
		WithInvalidatorLogger(f.logger),
	)
	if err == nil {
		f.logger.Info("Using Redis registry invalidation", zap.String("channel", f.tenancyConfig.InvalidationChannel))
		return inv, nil
	}

	if !f.allowLocalOnlyFallback {
		return nil, fmt.Errorf("Redis required for registry invalidation but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, registry invalidation stays local to this instance. "+
		"Other instances serve stale entries until the cache TTL expires.",
		zap.Duration("cache_ttl", f.tenancyConfig.CacheTTL),
		zap.Error(err),
	)
	return nil, nil
}

// Fanout adapts a possibly nil invalidator to the tenancy port
func Fanout(inv *RedisRegistryInvalidator) tenancy.InvalidationFanout {
	if inv == nil {
		return nil
	}
	return inv
}
