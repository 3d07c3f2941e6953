package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Resolution failure reasons used for metrics
const (
	FailureNotFound     = "not_found"
	FailureSuspended    = "suspended"
	FailureCrossTenant  = "cross_tenant"
	FailureUnauthorized = "unauthorized"
	FailureInternal     = "internal"
)

// Directory is the part of Registry the Resolver depends on
type Directory interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (identity.Binding, error)
	ResolveByHost(ctx context.Context, host string) (uuid.UUID, error)
	TenantForHost(ctx context.Context, host string) (uuid.UUID, error)
	Lookup(ctx context.Context, tenantID uuid.UUID) (*identity.TenantSnapshot, error)
}

// Resolver decides which tenant a request addresses and whether its principal may act as it
type Resolver struct {
	directory         Directory
	memberships       identity.MembershipRepository
	sessionResolution bool
	timeout           time.Duration
	metrics           Metrics
	logger            *zap.Logger
}

// ResolverConfig contains configuration for Resolver
type ResolverConfig struct {
	Directory   Directory
	Memberships identity.MembershipRepository
	// SessionResolution allows callers that are not host-routed to use their session's tenant
	SessionResolution bool
	Timeout           time.Duration
	Metrics           Metrics
	Logger            *zap.Logger
}

// NewResolver creates a new Resolver
func NewResolver(cfg ResolverConfig) *Resolver {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		directory:         cfg.Directory,
		memberships:       cfg.Memberships,
		sessionResolution: cfg.SessionResolution,
		timeout:           cfg.Timeout,
		metrics:           metrics,
		logger:            log,
	}
}

// Resolve returns the request context for ri. No context is returned unless the
// tenant is accessible and the principal is one of its members.
func (r *Resolver) Resolve(ctx context.Context, ri RequestIdentity) (*RequestContext, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if ri.Principal.IsZero() {
		r.metrics.RecordResolutionFailure(ctx, FailureUnauthorized)
		return nil, shared.ErrUnauthorized
	}

	tenantID, err := r.resolveTenant(ctx, ri)
	if err != nil {
		return nil, r.fail(ctx, ri, err)
	}

	binding, err := r.directory.Resolve(ctx, tenantID)
	if err != nil {
		return nil, r.fail(ctx, ri, err)
	}

	member, err := r.memberships.IsMember(ctx, tenantID, ri.Principal.ID)
	if err != nil {
		return nil, r.fail(ctx, ri, err)
	}
	if !member {
		return nil, r.denyCrossTenant(ctx, ri, tenantID, "principal is not a member")
	}

	snap, err := r.directory.Lookup(ctx, tenantID)
	if err != nil {
		return nil, r.fail(ctx, ri, err)
	}

	return &RequestContext{
		binding:   binding,
		principal: ri.Principal,
		slug:      snap.Slug,
	}, nil
}

// resolveTenant applies host routing first and falls back to the session's tenant
func (r *Resolver) resolveTenant(ctx context.Context, ri RequestIdentity) (uuid.UUID, error) {
	session := ri.Principal.SessionTenantID

	if ri.Host != "" {
		tenantID, err := r.directory.ResolveByHost(ctx, ri.Host)
		if err == nil {
			if session != uuid.Nil && session != tenantID {
				return uuid.Nil, r.denyCrossTenant(ctx, ri, tenantID, "session is bound to another tenant")
			}
			return tenantID, nil
		}
		if !errors.Is(err, shared.ErrNotFound) || !r.sessionResolution {
			return uuid.Nil, err
		}
	}

	if r.sessionResolution && session != uuid.Nil {
		return session, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (r *Resolver) denyCrossTenant(ctx context.Context, ri RequestIdentity, tenantID uuid.UUID, reason string) error {
	r.metrics.RecordCrossTenantDenied(ctx)
	logger.WithLogger(ctx, r.logger).Warn("Cross-tenant access denied",
		zap.String("principal_id", ri.Principal.ID.String()),
		zap.String("session_tenant_id", ri.Principal.SessionTenantID.String()),
		zap.String("addressed_tenant_id", tenantID.String()),
		zap.String("host", ri.Host),
		zap.String("reason", reason),
	)
	return shared.ErrCrossTenantAccess
}

func (r *Resolver) fail(ctx context.Context, ri RequestIdentity, err error) error {
	switch {
	case errors.Is(err, shared.ErrCrossTenantAccess):
		// already counted and logged
	case errors.Is(err, shared.ErrNotFound):
		r.metrics.RecordResolutionFailure(ctx, FailureNotFound)
	case errors.Is(err, shared.ErrSuspended):
		r.metrics.RecordResolutionFailure(ctx, FailureSuspended)
	default:
		r.metrics.RecordResolutionFailure(ctx, FailureInternal)
		logger.WithLogger(ctx, r.logger).Error("Tenant resolution failed",
			zap.String("host", ri.Host),
			zap.Error(err),
		)
	}
	return err
}

// Status reports the catalog status of the tenant a host maps to, without authentication.
// Deleted tenants are reported as missing.
func (r *Resolver) Status(ctx context.Context, host string) (*TenantStatusResponse, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tenantID, err := r.directory.TenantForHost(ctx, host)
	if err != nil {
		return nil, err
	}
	snap, err := r.directory.Lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if snap.Status == identity.TenantStatusDeleted {
		return nil, shared.ErrNotFound
	}
	return &TenantStatusResponse{ID: snap.ID, Slug: snap.Slug, Status: string(snap.Status)}, nil
}
