package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/auth"
	"github.com/tenantcore/backend/internal/infrastructure/config"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-that-is-long-enough-for-hmac",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "tenantcore-test",
	})
}

func issueToken(svc *auth.JWTService, in auth.IssueInput) string {
	tok, err := svc.Issue(in)
	if err != nil {
		panic(err)
	}
	return tok.Token
}

// fakeDirectory serves snapshots by host
type fakeDirectory struct {
	hosts   map[string]uuid.UUID
	tenants map[uuid.UUID]identity.TenantSnapshot
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{hosts: map[string]uuid.UUID{}, tenants: map[uuid.UUID]identity.TenantSnapshot{}}
}

func (d *fakeDirectory) add(host string, status identity.TenantStatus) identity.TenantSnapshot {
	id := uuid.New()
	snap := identity.TenantSnapshot{ID: id, Slug: "t" + id.String()[:8], Namespace: identity.NamespaceFor(id), Status: status, OwnerID: uuid.New()}
	d.hosts[host] = id
	d.tenants[id] = snap
	return snap
}

func (d *fakeDirectory) Resolve(ctx context.Context, tenantID uuid.UUID) (identity.Binding, error) {
	snap, err := d.Lookup(ctx, tenantID)
	if err != nil {
		return identity.Binding{}, err
	}
	return snap.Binding()
}

func (d *fakeDirectory) ResolveByHost(ctx context.Context, host string) (uuid.UUID, error) {
	id, err := d.TenantForHost(ctx, host)
	if err != nil {
		return uuid.Nil, err
	}
	if err := d.tenants[id].AccessError(); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (d *fakeDirectory) TenantForHost(_ context.Context, host string) (uuid.UUID, error) {
	id, ok := d.hosts[host]
	if !ok {
		return uuid.Nil, shared.ErrNotFound
	}
	return id, nil
}

func (d *fakeDirectory) Lookup(_ context.Context, tenantID uuid.UUID) (*identity.TenantSnapshot, error) {
	snap, ok := d.tenants[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &snap, nil
}

// fakeMemberships holds principal ids per tenant
type fakeMemberships struct {
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeMemberships() *fakeMemberships {
	return &fakeMemberships{members: map[uuid.UUID]map[uuid.UUID]bool{}}
}

func (m *fakeMemberships) join(tenantID, principalID uuid.UUID) {
	if m.members[tenantID] == nil {
		m.members[tenantID] = map[uuid.UUID]bool{}
	}
	m.members[tenantID][principalID] = true
}

func (m *fakeMemberships) IsMember(_ context.Context, tenantID, principalID uuid.UUID) (bool, error) {
	return m.members[tenantID][principalID], nil
}

func (m *fakeMemberships) FindByTenant(context.Context, uuid.UUID) ([]identity.Membership, error) {
	return nil, nil
}

func (m *fakeMemberships) Add(context.Context, *identity.Membership) error { return nil }

// stubRepositories satisfies tenancy.TenantRepositories; calling any method panics
type stubRepositories struct {
	tenancy.TenantRepositories
}

// recordingBinder runs bodies without storage and records how each scope ended
type recordingBinder struct {
	mu        sync.Mutex
	bound     []identity.Namespace
	committed int
	rolled    int
}

func (b *recordingBinder) ScopedAcquire(ctx context.Context, binding identity.Binding, body func(ctx context.Context, repos tenancy.TenantRepositories) error) error {
	b.mu.Lock()
	b.bound = append(b.bound, binding.Namespace())
	b.mu.Unlock()

	err := body(ctx, stubRepositories{})

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.rolled++
	} else {
		b.committed++
	}
	return err
}

type tenantFixture struct {
	directory   *fakeDirectory
	memberships *fakeMemberships
	binder      *recordingBinder
	service     *tenancy.Service
}

func newTenantFixture() *tenantFixture {
	f := &tenantFixture{
		directory:   newFakeDirectory(),
		memberships: newFakeMemberships(),
		binder:      &recordingBinder{},
	}
	resolver := tenancy.NewResolver(tenancy.ResolverConfig{
		Directory:   f.directory,
		Memberships: f.memberships,
	})
	f.service = tenancy.NewService(resolver, f.binder)
	return f
}
