package tenancy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AdminService handles platform-level tenant lifecycle operations
type AdminService struct {
	tenants     identity.TenantRepository
	domains     identity.DomainRepository
	memberships identity.MembershipRepository
	provisioner Provisioner
	events      shared.EventPublisher
	logger      *zap.Logger
}

// NewAdminService creates a new AdminService
func NewAdminService(
	tenants identity.TenantRepository,
	domains identity.DomainRepository,
	memberships identity.MembershipRepository,
	provisioner Provisioner,
	events shared.EventPublisher,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		tenants:     tenants,
		domains:     domains,
		memberships: memberships,
		provisioner: provisioner,
		events:      events,
		logger:      logger,
	}
}

// GetTenant returns a tenant with its host mappings
func (s *AdminService) GetTenant(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	domains, err := s.domains.FindByTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToTenantResponse(tenant, domains)
	return &resp, nil
}

// ListTenants lists tenants, optionally restricted to one status
func (s *AdminService) ListTenants(ctx context.Context, status string, filter shared.Filter) (*TenantListResult, error) {
	st := identity.TenantStatus(status)
	if status != "" && !st.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown tenant status")
	}
	tenants, total, err := s.tenants.FindAll(ctx, st, filter)
	if err != nil {
		return nil, err
	}
	result := &TenantListResult{Tenants: make([]TenantResponse, 0, len(tenants)), Total: total}
	for i := range tenants {
		result.Tenants = append(result.Tenants, ToTenantResponse(&tenants[i], nil))
	}
	return result, nil
}

// SuspendTenant blocks all access to an active tenant
func (s *AdminService) SuspendTenant(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	return s.changeStatus(ctx, id, (*identity.Tenant).Suspend)
}

// ReactivateTenant restores access to a suspended tenant
func (s *AdminService) ReactivateTenant(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	return s.changeStatus(ctx, id, (*identity.Tenant).Reactivate)
}

func (s *AdminService) changeStatus(ctx context.Context, id uuid.UUID, apply func(*identity.Tenant) error) (*TenantResponse, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(tenant); err != nil {
		return nil, err
	}
	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant status changed",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("status", string(tenant.Status)))
	s.publish(ctx, tenant.TakeEvents()...)

	resp := ToTenantResponse(tenant, nil)
	return &resp, nil
}

// DeleteTenant soft-deletes a tenant and removes its host mappings.
// The namespace is kept and never reassigned.
func (s *AdminService) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := tenant.MarkDeleted(); err != nil {
		return err
	}
	removed, err := s.provisioner.Retire(ctx, tenant)
	if err != nil {
		return err
	}

	s.logger.Info("Tenant deleted",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int("removed_domains", len(removed)))

	events := tenant.TakeEvents()
	for i := range removed {
		events = append(events, identity.NewTenantDomainRemovedEvent(&removed[i]))
	}
	s.publish(ctx, events...)
	return nil
}

// RenameTenantSlug changes the routing key of a tenant
func (s *AdminService) RenameTenantSlug(ctx context.Context, id uuid.UUID, slug string) (*TenantResponse, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tenant.RenameSlug(slug); err != nil {
		return nil, err
	}
	exists, err := s.tenants.ExistsBySlug(ctx, tenant.Slug)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Tenant slug is already taken")
	}
	if err := s.provisioner.RenameSlug(ctx, tenant); err != nil {
		return nil, err
	}

	s.publish(ctx, tenant.TakeEvents()...)

	resp := ToTenantResponse(tenant, nil)
	return &resp, nil
}

// AddDomain maps a custom host to a tenant that is not deleted
func (s *AdminService) AddDomain(ctx context.Context, tenantID uuid.UUID, host string) (*DomainResponse, error) {
	domain, err := identity.NewTenantDomain(host, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.domains.Add(ctx, domain); err != nil {
		return nil, err
	}

	s.publish(ctx, identity.NewTenantDomainAddedEvent(domain))
	return &DomainResponse{Host: domain.Host, TenantID: domain.TenantID, CreatedAt: domain.CreatedAt}, nil
}

// RemoveDomain removes a host mapping of a tenant
func (s *AdminService) RemoveDomain(ctx context.Context, tenantID uuid.UUID, host string) error {
	domain, err := s.domains.FindByHost(ctx, identity.NormalizeHost(host))
	if err != nil {
		return err
	}
	if domain.TenantID != tenantID {
		return shared.ErrNotFound
	}
	if err := s.domains.Remove(ctx, domain.Host); err != nil {
		return err
	}
	s.publish(ctx, identity.NewTenantDomainRemovedEvent(domain))
	return nil
}

// ListDomains lists the hosts mapped to a tenant
func (s *AdminService) ListDomains(ctx context.Context, tenantID uuid.UUID) ([]DomainResponse, error) {
	domains, err := s.domains.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result := make([]DomainResponse, 0, len(domains))
	for _, d := range domains {
		result = append(result, DomainResponse{Host: d.Host, TenantID: d.TenantID, CreatedAt: d.CreatedAt})
	}
	return result, nil
}

// AddMember adds a principal to a tenant
func (s *AdminService) AddMember(ctx context.Context, tenantID, principalID uuid.UUID) error {
	if _, err := s.tenants.FindByID(ctx, tenantID); err != nil {
		return err
	}
	membership, err := identity.NewMembership(tenantID, principalID, identity.MembershipRoleMember)
	if err != nil {
		return err
	}
	if err := s.memberships.Add(ctx, membership); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func (s *AdminService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish tenant events", zap.Error(err))
	}
}
