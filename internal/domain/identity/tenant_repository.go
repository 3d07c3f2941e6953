package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// TenantRepository defines catalog persistence for tenants
type TenantRepository interface {
	// FindByID finds a tenant by its ID, including deleted ones
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindBySlug finds a tenant by its current slug
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)

	// FindAll lists tenants, optionally restricted to one status
	FindAll(ctx context.Context, status TenantStatus, filter shared.Filter) ([]Tenant, int64, error)

	// ExistsBySlug checks whether a slug is taken
	ExistsBySlug(ctx context.Context, slug string) (bool, error)

	// Save updates a tenant using its version for optimistic locking
	Save(ctx context.Context, tenant *Tenant) error
}

// DomainRepository defines catalog persistence for host mappings
type DomainRepository interface {
	// FindByHost finds the entry for a normalized host
	FindByHost(ctx context.Context, host string) (*TenantDomain, error)

	// FindByTenant lists the hosts mapped to a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]TenantDomain, error)

	// Add inserts a new host mapping for an existing tenant, atomically with the tenant's status check.
	// A taken host returns ALREADY_EXISTS, a deleted tenant INVALID_STATE, an unknown one NOT_FOUND.
	Add(ctx context.Context, domain *TenantDomain) error

	// Remove deletes a host mapping
	Remove(ctx context.Context, host string) error
}

// MembershipRepository defines catalog persistence for memberships
type MembershipRepository interface {
	// IsMember reports whether principalID belongs to tenantID
	IsMember(ctx context.Context, tenantID, principalID uuid.UUID) (bool, error)

	// FindByTenant lists the members of a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Membership, error)

	// Add inserts a membership
	Add(ctx context.Context, membership *Membership) error
}

// RoleGrantRepository manages role grants inside the bound tenant namespace
type RoleGrantRepository interface {
	Grant(ctx context.Context, grant RoleGrant) error
	Revoke(ctx context.Context, principalID uuid.UUID, role Role) error
	FindByPrincipal(ctx context.Context, principalID uuid.UUID) ([]RoleGrant, error)
	FindAll(ctx context.Context) ([]RoleGrant, error)
}

// DescriptorRepository reads and writes the tenant descriptor inside the bound namespace
type DescriptorRepository interface {
	Get(ctx context.Context) (*TenantDescriptor, error)
	Put(ctx context.Context, descriptor TenantDescriptor) error
}
