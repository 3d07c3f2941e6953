package tenancy

import (
	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
)

// RequestIdentity is what an inbound request presents for resolution
type RequestIdentity struct {
	Host      string
	Principal identity.Principal
}

// RequestContext is the resolved tenant of one request. It is produced only by Resolver
// and must not be cached or shared across requests.
type RequestContext struct {
	binding   identity.Binding
	principal identity.Principal
	slug      string
}

// TenantID returns the resolved tenant
func (rc *RequestContext) TenantID() uuid.UUID {
	return rc.binding.TenantID()
}

// Namespace returns the namespace handle storage calls are routed to
func (rc *RequestContext) Namespace() identity.Namespace {
	return rc.binding.Namespace()
}

// Binding returns the handle passed to Binder.ScopedAcquire
func (rc *RequestContext) Binding() identity.Binding {
	return rc.binding
}

// Principal returns the authenticated caller
func (rc *RequestContext) Principal() identity.Principal {
	return rc.principal
}

// Slug returns the tenant slug at resolution time
func (rc *RequestContext) Slug() string {
	return rc.slug
}
