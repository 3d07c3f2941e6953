package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/interfaces/http/middleware"
)

// fakeDescriptors serves one stored descriptor
type fakeDescriptors struct {
	descriptor *identity.TenantDescriptor
}

func (d *fakeDescriptors) Get(context.Context) (*identity.TenantDescriptor, error) {
	if d.descriptor == nil {
		return nil, shared.ErrNotFound
	}
	return d.descriptor, nil
}

func (d *fakeDescriptors) Put(_ context.Context, descriptor identity.TenantDescriptor) error {
	d.descriptor = &descriptor
	return nil
}

// fakeRepos stands in for a bound namespace; only the descriptor is backed
type fakeRepos struct {
	descriptors *fakeDescriptors
}

func newFakeRepos(descriptor *identity.TenantDescriptor) *fakeRepos {
	return &fakeRepos{descriptors: &fakeDescriptors{descriptor: descriptor}}
}

func (r *fakeRepos) Descriptor() identity.DescriptorRepository { return r.descriptors }
func (r *fakeRepos) RoleGrants() identity.RoleGrantRepository { return nil }
func (r *fakeRepos) Subscriptions() billing.SubscriptionRepository { return nil }
func (r *fakeRepos) InvoiceLines() billing.InvoiceLineRepository { return nil }
func (r *fakeRepos) Ledger() billing.ScopedLedger { return nil }
func (r *fakeRepos) LockTenant(context.Context) error { return nil }

var _ tenancy.TenantRepositories = (*fakeRepos)(nil)

// withPrincipal mimics the JWT middleware
func withPrincipal(p identity.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTPrincipalKey, p)
		c.Next()
	}
}

// withRepos mimics the tenant binding middleware
func withRepos(tenantID uuid.UUID, repos tenancy.TenantRepositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, tenantID.String())
		c.Set(middleware.TenantRepositoriesKey, repos)
		c.Next()
	}
}

func serveJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(router, req)
}

func newHostRequest(method, path, host string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Host = host
	return req
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
