package tenancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKindTenant = "tenant"
	cacheKindHost   = "host"

	defaultFillTimeout = 2 * time.Second
)

// Registry maps tenant ids to namespaces and hosts to tenant ids.
// Reads go through SnapshotCache; misses are filled once per key with singleflight.
// A fill outlives the caller that started it, so one cancelled request does not fail the
// callers waiting on the same key. It never mutates tenant or domain state.
type Registry struct {
	tenants     identity.TenantRepository
	domains     identity.DomainRepository
	cache       SnapshotCache
	group       singleflight.Group
	baseDomain  string
	fillTimeout time.Duration
	metrics     Metrics
	logger      *zap.Logger

	// epoch is bumped by every invalidation; a fill that started before it is not cached.
	// storeMu makes the epoch check and the cache write one step with respect to invalidation.
	storeMu sync.Mutex
	epoch   atomic.Uint64
}

// RegistryConfig contains configuration for Registry
type RegistryConfig struct {
	Tenants     identity.TenantRepository
	Domains     identity.DomainRepository
	Cache       SnapshotCache
	BaseDomain  string
	// FillTimeout bounds one catalog read behind a cache miss
	FillTimeout time.Duration
	Metrics     Metrics
	Logger      *zap.Logger
}

// NewRegistry creates a new Registry
func NewRegistry(cfg RegistryConfig) *Registry {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fillTimeout := cfg.FillTimeout
	if fillTimeout <= 0 {
		fillTimeout = defaultFillTimeout
	}
	return &Registry{
		tenants:     cfg.Tenants,
		domains:     cfg.Domains,
		cache:       cfg.Cache,
		baseDomain:  identity.NormalizeHost(cfg.BaseDomain),
		fillTimeout: fillTimeout,
		metrics:     metrics,
		logger:      log,
	}
}

// Resolve returns the namespace handle of an accessible tenant.
// It fails with shared.ErrNotFound for unknown or deleted tenants and shared.ErrSuspended otherwise.
func (r *Registry) Resolve(ctx context.Context, tenantID uuid.UUID) (identity.Binding, error) {
	snap, err := r.Lookup(ctx, tenantID)
	if err != nil {
		return identity.Binding{}, err
	}
	return snap.Binding()
}

// ResolveByHost returns the accessible tenant addressed by host: an exact domain entry first,
// then a "<slug>.<base domain>" subdomain.
func (r *Registry) ResolveByHost(ctx context.Context, host string) (uuid.UUID, error) {
	tenantID, err := r.TenantForHost(ctx, host)
	if err != nil {
		return uuid.Nil, err
	}

	snap, err := r.Lookup(ctx, tenantID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := snap.AccessError(); err != nil {
		return uuid.Nil, err
	}
	return tenantID, nil
}

// TenantForHost maps host to a tenant id without enforcing the tenant's status
func (r *Registry) TenantForHost(ctx context.Context, host string) (uuid.UUID, error) {
	host = identity.NormalizeHost(host)
	if host == "" {
		return uuid.Nil, shared.ErrNotFound
	}

	if tenantID, hit := r.cache.GetHost(host); hit {
		r.metrics.RecordCacheLookup(ctx, cacheKindHost, true)
		return tenantID, nil
	}
	r.metrics.RecordCacheLookup(ctx, cacheKindHost, false)

	epoch := r.epoch.Load()
	v, err := r.fill(ctx, cacheKindHost+":"+host, func(ctx context.Context) (any, error) {
		id, err := r.lookupHost(ctx, host)
		if err != nil {
			return uuid.Nil, err
		}
		r.storeIfCurrent(epoch, func() { r.cache.SetHost(host, id) })
		return id, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (r *Registry) lookupHost(ctx context.Context, host string) (uuid.UUID, error) {
	domain, err := r.domains.FindByHost(ctx, host)
	if err == nil {
		return domain.TenantID, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return uuid.Nil, err
	}

	label, ok := identity.SubdomainLabel(host, r.baseDomain)
	if !ok {
		return uuid.Nil, shared.ErrNotFound
	}
	tenant, err := r.tenants.FindBySlug(ctx, label)
	if err != nil {
		return uuid.Nil, err
	}
	return tenant.ID, nil
}

// Lookup returns the cached catalog view of a tenant without enforcing its status
func (r *Registry) Lookup(ctx context.Context, tenantID uuid.UUID) (*identity.TenantSnapshot, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrNotFound
	}

	if snap, ok := r.cache.GetTenant(tenantID); ok {
		r.metrics.RecordCacheLookup(ctx, cacheKindTenant, true)
		return &snap, nil
	}
	r.metrics.RecordCacheLookup(ctx, cacheKindTenant, false)

	epoch := r.epoch.Load()
	v, err := r.fill(ctx, cacheKindTenant+":"+tenantID.String(), func(ctx context.Context) (any, error) {
		tenant, err := r.tenants.FindByID(ctx, tenantID)
		if err != nil {
			return identity.TenantSnapshot{}, err
		}
		snap := tenant.Snapshot()
		r.storeIfCurrent(epoch, func() { r.cache.SetTenant(snap) })
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	snap := v.(identity.TenantSnapshot)
	return &snap, nil
}

// fill runs load once per key. The load keeps ctx's values but not its cancellation;
// a caller that gives up returns its own context error while the load finishes for the others.
func (r *Registry) fill(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fillTimeout)
		defer cancel()
		return load(fillCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) storeIfCurrent(epoch uint64, store func()) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.epoch.Load() == epoch {
		store()
	}
}

func (r *Registry) invalidate(drop func()) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	r.epoch.Add(1)
	drop()
}

// InvalidateTenant drops the cached snapshot of one tenant
func (r *Registry) InvalidateTenant(tenantID uuid.UUID) {
	r.invalidate(func() { r.cache.DeleteTenant(tenantID) })
	r.group.Forget(cacheKindTenant + ":" + tenantID.String())
	r.logger.Debug("Invalidated tenant cache entry", zap.String("tenant_id", tenantID.String()))
}

// InvalidateHost drops the cached mapping of one host
func (r *Registry) InvalidateHost(host string) {
	host = identity.NormalizeHost(host)
	if host == "" {
		return
	}
	r.invalidate(func() { r.cache.DeleteHost(host) })
	r.group.Forget(cacheKindHost + ":" + host)
	r.logger.Debug("Invalidated host cache entry", zap.String("host", host))
}

// InvalidateSlug drops the cached mapping of the slug's subdomain
func (r *Registry) InvalidateSlug(slug string) {
	if slug == "" || r.baseDomain == "" {
		return
	}
	r.InvalidateHost(slug + "." + r.baseDomain)
}

// BaseDomain returns the domain under which tenant slugs are served
func (r *Registry) BaseDomain() string {
	return r.baseDomain
}
