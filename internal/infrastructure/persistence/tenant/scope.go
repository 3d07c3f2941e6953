// Package tenant guards schema-per-tenant isolation for GORM.
//
// Tenant-owned tables are never schema-qualified in queries; the namespace is selected
// with SET LOCAL search_path by the transaction that binds a request to its tenant. The
// bound namespace is also recorded on the context, and the callbacks in this package
// refuse any statement against a tenant-owned table that runs without that marker.
//
// Usage:
//
//	tenant.EnableNamespaceGuard(db, models.TenantTableNames)
//	ctx = tenant.WithBoundNamespace(ctx, "tenant_4f0c...")
//	tx.WithContext(ctx).Find(&grants) // allowed only with the marker
package tenant

import (
	"context"
	"errors"

	"github.com/tenantcore/backend/internal/domain/identity"
)

// ErrUnboundTenantTable is returned when a tenant-owned table is touched outside a bound scope
var ErrUnboundTenantTable = errors.New("tenant-owned table accessed outside a bound namespace")

// ErrNamespaceOverride is returned when a statement names a schema other than the bound one
var ErrNamespaceOverride = errors.New("statement targets a namespace other than the bound one")

// ErrInvalidNamespace is returned when a namespace handle is malformed
var ErrInvalidNamespace = errors.New("invalid tenant namespace")

type boundNamespaceKey struct{}

// WithBoundNamespace marks ctx as running inside the scope bound to namespace.
// Only the schema scope and the provisioner set it.
func WithBoundNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, boundNamespaceKey{}, namespace)
}

// BoundNamespace returns the namespace ctx is bound to
func BoundNamespace(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	ns, ok := ctx.Value(boundNamespaceKey{}).(string)
	return ns, ok && ns != ""
}

// ValidNamespace reports whether namespace has the shape of an allocated tenant schema
func ValidNamespace(namespace string) bool {
	return identity.Namespace(namespace).IsValid()
}
