package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// boundDB is a transaction whose search_path has been set to one tenant namespace.
// Every statement it issues carries the bound-namespace marker checked by the guard.
type boundDB struct {
	tx        *gorm.DB
	namespace string
}

func (b boundDB) session(ctx context.Context) *gorm.DB {
	return b.tx.WithContext(tenant.WithBoundNamespace(ctx, b.namespace))
}

// gormDescriptorRepository implements identity.DescriptorRepository
type gormDescriptorRepository struct{ boundDB }

// Get returns the mirrored tenant descriptor
func (r *gormDescriptorRepository) Get(ctx context.Context) (*identity.TenantDescriptor, error) {
	var model models.TenantDescriptorModel
	if err := r.session(ctx).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Put writes the descriptor, replacing the existing row
func (r *gormDescriptorRepository) Put(ctx context.Context, d identity.TenantDescriptor) error {
	model := &models.TenantDescriptorModel{
		TenantID:  d.TenantID,
		Slug:      d.Slug,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt,
	}
	return r.session(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"slug", "owner_id"}),
		}).
		Create(model).Error
}

// gormSubscriptionRepository implements billing.SubscriptionRepository
type gormSubscriptionRepository struct{ boundDB }

// Get returns the tenant subscription or shared.ErrNotFound
func (r *gormSubscriptionRepository) Get(ctx context.Context) (*billing.Subscription, error) {
	return r.get(r.session(ctx))
}

// GetForUpdate is Get holding the row lock until the transaction ends
func (r *gormSubscriptionRepository) GetForUpdate(ctx context.Context) (*billing.Subscription, error) {
	return r.get(r.session(ctx).Clauses(clause.Locking{Strength: "UPDATE"}))
}

func (r *gormSubscriptionRepository) get(db *gorm.DB) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := db.Where("id = ?", models.SubscriptionRowID).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts the single subscription row
func (r *gormSubscriptionRepository) Save(ctx context.Context, subscription *billing.Subscription) error {
	model := models.SubscriptionModelFromDomain(subscription)
	return r.session(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_code", "state", "granted_plan", "current_period_end", "last_event_id", "last_event_at", "updated_at",
			}),
		}).
		Create(model).Error
}

// gormRoleGrantRepository implements identity.RoleGrantRepository
type gormRoleGrantRepository struct{ boundDB }

// Grant adds a role; granting a held role is a no-op
func (r *gormRoleGrantRepository) Grant(ctx context.Context, grant identity.RoleGrant) error {
	model := &models.RoleGrantModel{
		PrincipalID:   grant.PrincipalID,
		Role:          grant.Role.String(),
		SourceEventID: grant.SourceEventID,
		GrantedAt:     grant.GrantedAt,
	}
	return r.session(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "principal_id"}, {Name: "role"}},
			DoNothing: true,
		}).
		Create(model).Error
}

// Revoke removes a role; revoking a role that is not held is a no-op
func (r *gormRoleGrantRepository) Revoke(ctx context.Context, principalID uuid.UUID, role identity.Role) error {
	return r.session(ctx).
		Where("principal_id = ? AND role = ?", principalID, role.String()).
		Delete(&models.RoleGrantModel{}).Error
}

// FindByPrincipal lists the roles held by principalID
func (r *gormRoleGrantRepository) FindByPrincipal(ctx context.Context, principalID uuid.UUID) ([]identity.RoleGrant, error) {
	var grantModels []models.RoleGrantModel
	if err := r.session(ctx).
		Where("principal_id = ?", principalID).
		Order("role ASC").
		Find(&grantModels).Error; err != nil {
		return nil, err
	}
	return toRoleGrants(grantModels), nil
}

// FindAll lists every grant in the namespace
func (r *gormRoleGrantRepository) FindAll(ctx context.Context) ([]identity.RoleGrant, error) {
	var grantModels []models.RoleGrantModel
	if err := r.session(ctx).Order("principal_id ASC, role ASC").Find(&grantModels).Error; err != nil {
		return nil, err
	}
	return toRoleGrants(grantModels), nil
}

func toRoleGrants(grantModels []models.RoleGrantModel) []identity.RoleGrant {
	grants := make([]identity.RoleGrant, len(grantModels))
	for i, model := range grantModels {
		grants[i] = model.ToDomain()
	}
	return grants
}

// gormInvoiceLineRepository implements billing.InvoiceLineRepository
type gormInvoiceLineRepository struct{ boundDB }

// Append inserts the line unless its invoice id exists
func (r *gormInvoiceLineRepository) Append(ctx context.Context, line *billing.InvoiceLine) (bool, error) {
	result := r.session(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "invoice_id"}}, DoNothing: true}).
		Create(models.InvoiceLineModelFromDomain(line))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindAll lists invoice lines, newest first
func (r *gormInvoiceLineRepository) FindAll(ctx context.Context, filter shared.Filter) ([]billing.InvoiceLine, error) {
	var lineModels []models.InvoiceLineModel
	if err := r.session(ctx).
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&lineModels).Error; err != nil {
		return nil, err
	}

	lines := make([]billing.InvoiceLine, len(lineModels))
	for i, model := range lineModels {
		lines[i] = model.ToDomain()
	}
	return lines, nil
}

// Ensure the tenant-schema repositories satisfy the domain ports
var (
	_ identity.DescriptorRepository  = (*gormDescriptorRepository)(nil)
	_ identity.RoleGrantRepository   = (*gormRoleGrantRepository)(nil)
	_ billing.SubscriptionRepository = (*gormSubscriptionRepository)(nil)
	_ billing.InvoiceLineRepository  = (*gormInvoiceLineRepository)(nil)
)
