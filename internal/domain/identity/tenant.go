package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// TenantStatus represents the lifecycle status of a tenant
type TenantStatus string

const (
	TenantStatusProvisioning TenantStatus = "provisioning" // Catalog row written, namespace not yet ready
	TenantStatusActive       TenantStatus = "active"
	TenantStatusSuspended    TenantStatus = "suspended"
	TenantStatusDeleted      TenantStatus = "deleted" // Terminal; namespace is kept until reclaimed offline
)

// IsValid reports whether the status is one of the known values
func (s TenantStatus) IsValid() bool {
	switch s {
	case TenantStatusProvisioning, TenantStatusActive, TenantStatusSuspended, TenantStatusDeleted:
		return true
	}
	return false
}

// Tenant is the catalog aggregate root for a customer organization.
// The ID is never reused and the namespace is allocated once at creation.
type Tenant struct {
	shared.BaseAggregateRoot
	Slug      string
	Namespace Namespace
	Status    TenantStatus
	OwnerID   uuid.UUID
}

// NewTenant creates a tenant in provisioning status with a freshly allocated namespace
func NewTenant(slug string, ownerID uuid.UUID) (*Tenant, error) {
	slug = NormalizeSlug(slug)
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Tenant owner is required")
	}

	tenant := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Slug:              slug,
		Status:            TenantStatusProvisioning,
		OwnerID:           ownerID,
	}
	tenant.Namespace = NamespaceFor(tenant.ID)

	return tenant, nil
}

// MarkProvisioned moves a provisioning tenant to active once its namespace exists
func (t *Tenant) MarkProvisioned() error {
	if t.Status != TenantStatusProvisioning {
		return shared.NewDomainError("INVALID_STATE", "Only provisioning tenants can be marked provisioned")
	}

	t.Status = TenantStatusActive
	t.IncrementVersion()

	t.Raise(NewTenantCreatedEvent(t))
	return nil
}

// Suspend blocks access to an active tenant
func (t *Tenant) Suspend() error {
	if t.Status == TenantStatusSuspended {
		return shared.NewDomainError("ALREADY_SUSPENDED", "Tenant is already suspended")
	}
	if t.Status != TenantStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only active tenants can be suspended")
	}
	t.changeStatus(TenantStatusSuspended)
	return nil
}

// Reactivate restores access to a suspended tenant
func (t *Tenant) Reactivate() error {
	if t.Status == TenantStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Tenant is already active")
	}
	if t.Status != TenantStatusSuspended {
		return shared.NewDomainError("INVALID_STATE", "Only suspended tenants can be reactivated")
	}
	t.changeStatus(TenantStatusActive)
	return nil
}

// MarkDeleted soft-deletes the tenant. There is no hard delete path.
func (t *Tenant) MarkDeleted() error {
	if t.Status == TenantStatusDeleted {
		return shared.NewDomainError("ALREADY_DELETED", "Tenant is already deleted")
	}
	t.changeStatus(TenantStatusDeleted)
	return nil
}

func (t *Tenant) changeStatus(status TenantStatus) {
	old := t.Status
	t.Status = status
	t.IncrementVersion()

	t.Raise(NewTenantStatusChangedEvent(t, old, status))
}

// RenameSlug changes the routing key. The namespace does not change.
func (t *Tenant) RenameSlug(slug string) error {
	if t.Status == TenantStatusDeleted {
		return shared.NewDomainError("INVALID_STATE", "Cannot rename a deleted tenant")
	}
	slug = NormalizeSlug(slug)
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	if slug == t.Slug {
		return shared.NewDomainError("SLUG_UNCHANGED", "New slug is the same as the current slug")
	}

	old := t.Slug
	t.Slug = slug
	t.IncrementVersion()

	t.Raise(NewTenantSlugChangedEvent(t, old))
	return nil
}

// IsActive returns true if the tenant can serve requests
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// Snapshot returns the read-only view cached by the schema registry
func (t *Tenant) Snapshot() TenantSnapshot {
	return TenantSnapshot{
		ID:        t.ID,
		Slug:      t.Slug,
		Namespace: t.Namespace,
		Status:    t.Status,
		OwnerID:   t.OwnerID,
	}
}

// Slug rules: DNS label, lower-case, starting with a letter
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// reservedSlugs cannot be used as tenant subdomains
var reservedSlugs = map[string]struct{}{
	"www":    {},
	"api":    {},
	"admin":  {},
	"app":    {},
	"public": {},
	"status": {},
}

// NormalizeSlug trims and lower-cases a slug
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidateSlug checks a normalized slug
func ValidateSlug(slug string) error {
	if slug == "" {
		return shared.NewDomainError("INVALID_SLUG", "Tenant slug cannot be empty")
	}
	if len(slug) < 3 {
		return shared.NewDomainError("INVALID_SLUG", "Tenant slug must be at least 3 characters")
	}
	if len(slug) > 63 {
		return shared.NewDomainError("INVALID_SLUG", "Tenant slug cannot exceed 63 characters")
	}
	if !slugPattern.MatchString(slug) {
		return shared.NewDomainError("INVALID_SLUG", "Tenant slug can only contain lower-case letters, digits and hyphens, and must start with a letter")
	}
	if strings.Contains(slug, "--") {
		return shared.NewDomainError("INVALID_SLUG", "Tenant slug cannot contain consecutive hyphens")
	}
	if _, reserved := reservedSlugs[slug]; reserved {
		return shared.NewDomainError("INVALID_SLUG", "Tenant slug is reserved")
	}
	return nil
}
