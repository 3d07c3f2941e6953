// Package tenancy resolves inbound requests to tenants and binds their namespaces.
package tenancy

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
)

// TenantRepositories gives access to the storage of one bound tenant namespace.
// Instances are only valid inside the body passed to Binder.ScopedAcquire.
type TenantRepositories interface {
	Descriptor() identity.DescriptorRepository
	RoleGrants() identity.RoleGrantRepository
	Subscriptions() billing.SubscriptionRepository
	InvoiceLines() billing.InvoiceLineRepository
	Ledger() billing.ScopedLedger

	// LockTenant serializes the rest of the transaction against other writers of the same tenant
	LockTenant(ctx context.Context) error
}

// Binder routes every storage call made inside body to the namespace of binding.
// The binding is released when body returns, panics or fails.
type Binder interface {
	ScopedAcquire(ctx context.Context, binding identity.Binding, body func(ctx context.Context, repos TenantRepositories) error) error
}

// Provisioner performs the catalog and namespace writes that must be atomic together
type Provisioner interface {
	// Provision writes the catalog row, the owner membership, the namespace and its descriptor
	Provision(ctx context.Context, tenant *identity.Tenant, owner *identity.Membership) error

	// RenameSlug stores the new slug in the catalog and the mirrored descriptor
	RenameSlug(ctx context.Context, tenant *identity.Tenant) error

	// Retire marks the tenant deleted and removes its host mappings, returning the removed ones
	Retire(ctx context.Context, tenant *identity.Tenant) ([]identity.TenantDomain, error)
}

// SnapshotCache is the in-process cache behind the Registry
type SnapshotCache interface {
	GetTenant(id uuid.UUID) (identity.TenantSnapshot, bool)
	SetTenant(snapshot identity.TenantSnapshot)
	DeleteTenant(id uuid.UUID)
	GetHost(host string) (uuid.UUID, bool)
	SetHost(host string, tenantID uuid.UUID)
	DeleteHost(host string)
}

// Metrics receives tenancy measurements
type Metrics interface {
	RecordCacheLookup(ctx context.Context, kind string, hit bool)
	RecordResolutionFailure(ctx context.Context, reason string)
	RecordCrossTenantDenied(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordCacheLookup(context.Context, string, bool) {}
func (nopMetrics) RecordResolutionFailure(context.Context, string) {}
func (nopMetrics) RecordCrossTenantDenied(context.Context)         {}
