package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// Namespace is the name of the PostgreSQL schema that holds one tenant's data.
// It is derived from the tenant ID, so two tenants can never share one.
type Namespace string

const namespacePrefix = "tenant_"

var namespacePattern = regexp.MustCompile(`^tenant_[0-9a-f]{32}$`)

// NamespaceFor allocates the namespace for a tenant ID
func NamespaceFor(tenantID uuid.UUID) Namespace {
	return Namespace(namespacePrefix + strings.ReplaceAll(tenantID.String(), "-", ""))
}

// String returns the schema name
func (n Namespace) String() string {
	return string(n)
}

// IsValid reports whether n has the shape produced by NamespaceFor
func (n Namespace) IsValid() bool {
	return namespacePattern.MatchString(string(n))
}

// TenantSnapshot is the immutable catalog view of a tenant held by the registry cache
type TenantSnapshot struct {
	ID        uuid.UUID
	Slug      string
	Namespace Namespace
	Status    TenantStatus
	OwnerID   uuid.UUID
}

// AccessError maps the status to the error a caller sees when trying to use the tenant.
// Deleted tenants look the same as missing ones.
func (s TenantSnapshot) AccessError() error {
	switch s.Status {
	case TenantStatusActive:
		return nil
	case TenantStatusDeleted:
		return shared.ErrNotFound
	default:
		return shared.ErrSuspended
	}
}

// Binding returns the namespace handle for an accessible tenant
func (s TenantSnapshot) Binding() (Binding, error) {
	if err := s.AccessError(); err != nil {
		return Binding{}, err
	}
	if !s.Namespace.IsValid() {
		return Binding{}, shared.NewDomainError("INVALID_NAMESPACE", "Tenant namespace is malformed")
	}
	return Binding{tenantID: s.ID, namespace: s.Namespace}, nil
}

// BillingBinding returns the namespace handle used to apply billing events.
// Suspended tenants keep receiving billing state so that a payment can lift the suspension.
func (s TenantSnapshot) BillingBinding() (Binding, error) {
	if s.Status != TenantStatusActive && s.Status != TenantStatusSuspended {
		return Binding{}, shared.ErrNotFound
	}
	if !s.Namespace.IsValid() {
		return Binding{}, shared.NewDomainError("INVALID_NAMESPACE", "Tenant namespace is malformed")
	}
	return Binding{tenantID: s.ID, namespace: s.Namespace}, nil
}

// Binding is the namespace handle of an active tenant.
// The zero value is unbound and is refused by every scope.
type Binding struct {
	tenantID  uuid.UUID
	namespace Namespace
}

// TenantID returns the bound tenant
func (b Binding) TenantID() uuid.UUID {
	return b.tenantID
}

// Namespace returns the bound schema name
func (b Binding) Namespace() Namespace {
	return b.namespace
}

// IsZero reports whether the binding is unbound
func (b Binding) IsZero() bool {
	return b.tenantID == uuid.Nil || b.namespace == ""
}
