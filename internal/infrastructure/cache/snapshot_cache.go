package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/identity"
)

const defaultSnapshotTTL = 5 * time.Minute

// RistrettoSnapshotCache is the in-process L1 cache behind the tenant registry.
// Every entry costs 1, so maxEntries bounds the number of tenants and hosts held.
type RistrettoSnapshotCache struct {
	tenants *ristretto.Cache[string, identity.TenantSnapshot]
	hosts   *ristretto.Cache[string, uuid.UUID]
	ttl     time.Duration
}

// NewRistrettoSnapshotCache creates the registry cache. ttl bounds staleness if an invalidation is lost.
func NewRistrettoSnapshotCache(maxEntries int64, ttl time.Duration) (*RistrettoSnapshotCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", maxEntries)
	}
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	tenants, err := ristretto.NewCache(&ristretto.Config[string, identity.TenantSnapshot]{
		NumCounters: maxEntries * 10, // ~10x expected items
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant cache: %w", err)
	}
	hosts, err := ristretto.NewCache(&ristretto.Config[string, uuid.UUID]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		tenants.Close()
		return nil, fmt.Errorf("failed to create host cache: %w", err)
	}

	return &RistrettoSnapshotCache{tenants: tenants, hosts: hosts, ttl: ttl}, nil
}

// GetTenant returns the cached snapshot of a tenant
func (c *RistrettoSnapshotCache) GetTenant(id uuid.UUID) (identity.TenantSnapshot, bool) {
	return c.tenants.Get(id.String())
}

// SetTenant caches a snapshot. Writes are buffered and may be dropped under contention.
func (c *RistrettoSnapshotCache) SetTenant(snapshot identity.TenantSnapshot) {
	c.tenants.SetWithTTL(snapshot.ID.String(), snapshot, 1, c.ttl)
}

// DeleteTenant drops a cached snapshot
func (c *RistrettoSnapshotCache) DeleteTenant(id uuid.UUID) {
	c.tenants.Del(id.String())
}

// GetHost returns the tenant a host maps to
func (c *RistrettoSnapshotCache) GetHost(host string) (uuid.UUID, bool) {
	return c.hosts.Get(host)
}

// SetHost caches a host mapping
func (c *RistrettoSnapshotCache) SetHost(host string, tenantID uuid.UUID) {
	c.hosts.SetWithTTL(host, tenantID, 1, c.ttl)
}

// DeleteHost drops a cached host mapping
func (c *RistrettoSnapshotCache) DeleteHost(host string) {
	c.hosts.Del(host)
}

// Wait blocks until buffered writes are visible
func (c *RistrettoSnapshotCache) Wait() {
	c.tenants.Wait()
	c.hosts.Wait()
}

// Close releases the cache goroutines
func (c *RistrettoSnapshotCache) Close() {
	c.tenants.Close()
	c.hosts.Close()
}

var _ tenancy.SnapshotCache = (*RistrettoSnapshotCache)(nil)
