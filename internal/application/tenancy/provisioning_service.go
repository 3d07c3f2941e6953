package tenancy

import (
	"context"
	"fmt"

	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ProvisioningService implements create_tenant
type ProvisioningService struct {
	tenants     identity.TenantRepository
	provisioner Provisioner
	events      shared.EventPublisher
	logger      *zap.Logger
}

// NewProvisioningService creates a new ProvisioningService
func NewProvisioningService(
	tenants identity.TenantRepository,
	provisioner Provisioner,
	events shared.EventPublisher,
	logger *zap.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		tenants:     tenants,
		provisioner: provisioner,
		events:      events,
		logger:      logger,
	}
}

// CreateTenant creates the catalog row, the owner membership, the namespace and the
// mirrored descriptor as one unit. Either all of them exist afterwards or none does.
func (s *ProvisioningService) CreateTenant(ctx context.Context, input CreateTenantInput) (*TenantResponse, error) {
	ctx, span := telemetry.StartOperation(ctx, "tenancy", "create_tenant", telemetry.KeyTenantSlug.String(input.Slug))
	defer span.End()

	resp, err := s.createTenant(ctx, input)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.KeyTenantID.String(resp.ID.String()))
	return resp, nil
}

func (s *ProvisioningService) createTenant(ctx context.Context, input CreateTenantInput) (*TenantResponse, error) {
	tenant, err := identity.NewTenant(input.Slug, input.OwnerID)
	if err != nil {
		return nil, err
	}

	exists, err := s.tenants.ExistsBySlug(ctx, tenant.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Tenant slug is already taken")
	}

	owner, err := identity.NewMembership(tenant.ID, tenant.OwnerID, identity.MembershipRoleOwner)
	if err != nil {
		return nil, err
	}

	if err := s.provisioner.Provision(ctx, tenant, owner); err != nil {
		return nil, err
	}

	log := logger.WithLogger(ctx, s.logger)
	log.Info("Tenant provisioned",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("slug", tenant.Slug),
		zap.String("namespace", tenant.Namespace.String()),
	)

	if err := s.events.Publish(ctx, tenant.TakeEvents()...); err != nil {
		log.Warn("Failed to publish tenant events", zap.Error(err))
	}

	resp := ToTenantResponse(tenant, nil)
	return &resp, nil
}
