package tenancy

import (
	"context"

	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/infrastructure/telemetry"
)

// Service exposes resolve_and_bind: resolution followed by a namespace-scoped unit of work
type Service struct {
	resolver *Resolver
	binder   Binder
}

// NewService creates a new Service
func NewService(resolver *Resolver, binder Binder) *Service {
	return &Service{resolver: resolver, binder: binder}
}

// Resolve resolves ri without binding a namespace
func (s *Service) Resolve(ctx context.Context, ri RequestIdentity) (*RequestContext, error) {
	return s.resolver.Resolve(ctx, ri)
}

// Status reports the public status of the tenant serving host
func (s *Service) Status(ctx context.Context, host string) (*TenantStatusResponse, error) {
	return s.resolver.Status(ctx, host)
}

// ResolveAndBind resolves ri and runs body with every storage call routed to the resolved namespace.
// When resolution fails, body is never called and no tenant-scoped statement is issued.
func (s *Service) ResolveAndBind(ctx context.Context, ri RequestIdentity, body func(ctx context.Context, rc *RequestContext, repos TenantRepositories) error) error {
	ctx, span := telemetry.StartOperation(ctx, "tenancy", "resolve_and_bind",
		telemetry.KeyHost.String(ri.Host),
		telemetry.KeyPrincipalID.String(ri.Principal.ID.String()),
	)
	defer span.End()

	rc, err := s.resolver.Resolve(ctx, ri)
	if err != nil {
		telemetry.Fail(span, err)
		return err
	}
	span.SetAttributes(
		telemetry.KeyTenantID.String(rc.TenantID().String()),
		telemetry.KeyNamespace.String(rc.Namespace().String()),
	)

	if err := s.Bind(ctx, rc, body); err != nil {
		telemetry.Fail(span, err)
		return err
	}
	return nil
}

// Bind runs body inside the namespace of an already resolved request
func (s *Service) Bind(ctx context.Context, rc *RequestContext, body func(ctx context.Context, rc *RequestContext, repos TenantRepositories) error) error {
	ctx = logger.WithTenantID(ctx, rc.TenantID().String())
	ctx = logger.WithNamespace(ctx, rc.Namespace().String())
	ctx = logger.WithPrincipalID(ctx, rc.Principal().ID.String())
	return s.binder.ScopedAcquire(ctx, rc.Binding(), func(ctx context.Context, repos TenantRepositories) error {
		return body(ctx, rc, repos)
	})
}
