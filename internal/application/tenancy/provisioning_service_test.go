package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

func TestProvisioningService_CreateTenant(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("provisions tenant with owner membership", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		provisioner := new(MockProvisioner)
		events := new(MockEventPublisher)
		svc := NewProvisioningService(tenants, provisioner, events, zap.NewNop())

		tenants.On("ExistsBySlug", mock.Anything, "acme").Return(false, nil)
		provisioner.On("Provision", mock.Anything,
			mock.MatchedBy(func(tn *identity.Tenant) bool {
				return tn.Slug == "acme" && tn.Namespace == identity.NamespaceFor(tn.ID)
			}),
			mock.MatchedBy(func(m *identity.Membership) bool {
				return m.PrincipalID == ownerID && m.Role == identity.MembershipRoleOwner
			}),
		).Run(func(args mock.Arguments) {
			tn := args.Get(1).(*identity.Tenant)
			require.NoError(t, tn.MarkProvisioned())
		}).Return(nil)
		events.On("Publish", mock.Anything, mock.MatchedBy(func(evts []shared.DomainEvent) bool {
			return len(evts) == 1 && evts[0].EventType() == identity.EventTypeTenantCreated
		})).Return(nil)

		resp, err := svc.CreateTenant(ctx, CreateTenantInput{Slug: " Acme ", OwnerID: ownerID})
		require.NoError(t, err)
		assert.Equal(t, "acme", resp.Slug)
		assert.Equal(t, string(identity.TenantStatusActive), resp.Status)
		assert.Equal(t, ownerID, resp.OwnerID)
		provisioner.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("taken slug is already exists", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		provisioner := new(MockProvisioner)
		svc := NewProvisioningService(tenants, provisioner, new(MockEventPublisher), zap.NewNop())
		tenants.On("ExistsBySlug", mock.Anything, "acme").Return(true, nil)

		_, err := svc.CreateTenant(ctx, CreateTenantInput{Slug: "acme", OwnerID: ownerID})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		provisioner.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid slug never touches storage", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		svc := NewProvisioningService(tenants, new(MockProvisioner), new(MockEventPublisher), zap.NewNop())

		for _, slug := range []string{"", "ab", "1acme", "www", "a--b", "acme_corp"} {
			_, err := svc.CreateTenant(ctx, CreateTenantInput{Slug: slug, OwnerID: ownerID})
			assert.Error(t, err, slug)
		}
		tenants.AssertNotCalled(t, "ExistsBySlug", mock.Anything, mock.Anything)
	})

	t.Run("missing owner is refused", func(t *testing.T) {
		svc := NewProvisioningService(new(MockTenantRepository), new(MockProvisioner), new(MockEventPublisher), zap.NewNop())
		_, err := svc.CreateTenant(ctx, CreateTenantInput{Slug: "acme"})
		assert.Error(t, err)
	})

	t.Run("provisioning failure publishes nothing", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		provisioner := new(MockProvisioner)
		events := new(MockEventPublisher)
		svc := NewProvisioningService(tenants, provisioner, events, zap.NewNop())

		tenants.On("ExistsBySlug", mock.Anything, "acme").Return(false, nil)
		provisioner.On("Provision", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("create schema failed"))

		resp, err := svc.CreateTenant(ctx, CreateTenantInput{Slug: "acme", OwnerID: ownerID})
		assert.Nil(t, resp)
		assert.Error(t, err)
		events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("publish failure does not fail creation", func(t *testing.T) {
		tenants := new(MockTenantRepository)
		provisioner := new(MockProvisioner)
		events := new(MockEventPublisher)
		svc := NewProvisioningService(tenants, provisioner, events, zap.NewNop())

		tenants.On("ExistsBySlug", mock.Anything, "acme").Return(false, nil)
		provisioner.On("Provision", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus stopped"))

		_, err := svc.CreateTenant(ctx, CreateTenantInput{Slug: "acme", OwnerID: ownerID})
		assert.NoError(t, err)
	})
}
