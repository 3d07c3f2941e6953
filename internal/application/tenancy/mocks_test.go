package tenancy

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// MockTenantRepository is a mock implementation of identity.TenantRepository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindBySlug(ctx context.Context, slug string) (*identity.Tenant, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindAll(ctx context.Context, status identity.TenantStatus, filter shared.Filter) ([]identity.Tenant, int64, error) {
	args := m.Called(ctx, status, filter)
	return args.Get(0).([]identity.Tenant), args.Get(1).(int64), args.Error(2)
}

func (m *MockTenantRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

// MockDomainRepository is a mock implementation of identity.DomainRepository
type MockDomainRepository struct {
	mock.Mock
}

func (m *MockDomainRepository) FindByHost(ctx context.Context, host string) (*identity.TenantDomain, error) {
	args := m.Called(ctx, host)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.TenantDomain), args.Error(1)
}

func (m *MockDomainRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]identity.TenantDomain, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]identity.TenantDomain), args.Error(1)
}

func (m *MockDomainRepository) Add(ctx context.Context, domain *identity.TenantDomain) error {
	args := m.Called(ctx, domain)
	return args.Error(0)
}

func (m *MockDomainRepository) Remove(ctx context.Context, host string) error {
	args := m.Called(ctx, host)
	return args.Error(0)
}

// MockMembershipRepository is a mock implementation of identity.MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) IsMember(ctx context.Context, tenantID, principalID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, principalID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]identity.Membership, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]identity.Membership), args.Error(1)
}

func (m *MockMembershipRepository) Add(ctx context.Context, membership *identity.Membership) error {
	args := m.Called(ctx, membership)
	return args.Error(0)
}

// MockProvisioner is a mock implementation of Provisioner
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, tenant *identity.Tenant, owner *identity.Membership) error {
	args := m.Called(ctx, tenant, owner)
	return args.Error(0)
}

func (m *MockProvisioner) RenameSlug(ctx context.Context, tenant *identity.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockProvisioner) Retire(ctx context.Context, tenant *identity.Tenant) ([]identity.TenantDomain, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.TenantDomain), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockBinder is a mock implementation of Binder that runs body with the given repositories
type MockBinder struct {
	mock.Mock
	repos TenantRepositories
}

func (m *MockBinder) ScopedAcquire(ctx context.Context, binding identity.Binding, body func(ctx context.Context, repos TenantRepositories) error) error {
	args := m.Called(ctx, binding)
	if err := args.Error(0); err != nil {
		return err
	}
	return body(ctx, m.repos)
}

type stubRepositories struct{}

func (stubRepositories) Descriptor() identity.DescriptorRepository     { return nil }
func (stubRepositories) RoleGrants() identity.RoleGrantRepository      { return nil }
func (stubRepositories) Subscriptions() billing.SubscriptionRepository { return nil }
func (stubRepositories) InvoiceLines() billing.InvoiceLineRepository   { return nil }
func (stubRepositories) Ledger() billing.ScopedLedger                  { return nil }
func (stubRepositories) LockTenant(context.Context) error              { return nil }

// mapCache is a SnapshotCache backed by plain maps
type mapCache struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]identity.TenantSnapshot
	hosts   map[string]uuid.UUID

	// beforeSetTenant runs ahead of every SetTenant, outside the map lock
	beforeSetTenant func()
}

func newMapCache() *mapCache {
	return &mapCache{
		tenants: make(map[uuid.UUID]identity.TenantSnapshot),
		hosts:   make(map[string]uuid.UUID),
	}
}

func (c *mapCache) GetTenant(id uuid.UUID) (identity.TenantSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.tenants[id]
	return s, ok
}

func (c *mapCache) SetTenant(s identity.TenantSnapshot) {
	if c.beforeSetTenant != nil {
		c.beforeSetTenant()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenants[s.ID] = s
}

func (c *mapCache) DeleteTenant(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tenants, id)
}

func (c *mapCache) GetHost(host string) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.hosts[host]
	return id, ok
}

func (c *mapCache) SetHost(host string, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hosts[host] = id
}

func (c *mapCache) DeleteHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hosts, host)
}

// countingMetrics records what the tenancy components report
type countingMetrics struct {
	mu          sync.Mutex
	hits        map[string]int
	misses      map[string]int
	failures    map[string]int
	crossTenant int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{hits: map[string]int{}, misses: map[string]int{}, failures: map[string]int{}}
}

func (m *countingMetrics) RecordCacheLookup(_ context.Context, kind string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits[kind]++
	} else {
		m.misses[kind]++
	}
}

func (m *countingMetrics) RecordResolutionFailure(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

func (m *countingMetrics) RecordCrossTenantDenied(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crossTenant++
}

func newActiveTenant(slug string) *identity.Tenant {
	t, err := identity.NewTenant(slug, uuid.New())
	if err != nil {
		panic(err)
	}
	if err := t.MarkProvisioned(); err != nil {
		panic(err)
	}
	t.TakeEvents()
	return t
}

func newSuspendedTenant(slug string) *identity.Tenant {
	t := newActiveTenant(slug)
	if err := t.Suspend(); err != nil {
		panic(err)
	}
	t.TakeEvents()
	return t
}

// recordingFanout collects broadcast invalidations
type recordingFanout struct {
	mu   sync.Mutex
	sent []Invalidation
	err  error
}

func (f *recordingFanout) Broadcast(_ context.Context, invalidations []Invalidation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, invalidations...)
	return f.err
}
