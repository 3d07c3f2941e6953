package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDomainRepository implements identity.DomainRepository on the catalog
type GormDomainRepository struct {
	db *gorm.DB
}

// NewGormDomainRepository creates a new GormDomainRepository
func NewGormDomainRepository(db *gorm.DB) *GormDomainRepository {
	return &GormDomainRepository{db: db}
}

// FindByHost finds the mapping for host
func (r *GormDomainRepository) FindByHost(ctx context.Context, host string) (*identity.TenantDomain, error) {
	host = identity.NormalizeHost(host)
	if host == "" {
		return nil, shared.ErrNotFound
	}
	var model models.TenantDomainModel
	if err := r.db.WithContext(ctx).Where("host = ?", host).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant lists the hosts mapped to tenantID
func (r *GormDomainRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]identity.TenantDomain, error) {
	var domainModels []models.TenantDomainModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("host ASC").
		Find(&domainModels).Error; err != nil {
		return nil, err
	}

	domains := make([]identity.TenantDomain, len(domainModels))
	for i, model := range domainModels {
		domains[i] = *model.ToDomain()
	}
	return domains, nil
}

// Add inserts a host mapping. The tenant row is share-locked for the insert, so a concurrent
// Retire either sees the new host and removes it or commits first and the insert is refused.
func (r *GormDomainRepository) Add(ctx context.Context, domain *identity.TenantDomain) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.TenantModel
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
			Select("id", "status").
			Where("id = ?", domain.TenantID).
			Take(&owner).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if owner.Status == identity.TenantStatusDeleted {
			return shared.NewDomainError(shared.CodeInvalidState, "Cannot map a host to a deleted tenant")
		}

		if err := tx.Create(models.TenantDomainModelFromDomain(domain)).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Host is already mapped to a tenant")
			}
			return err
		}
		return nil
	})
}

// Remove deletes a host mapping
func (r *GormDomainRepository) Remove(ctx context.Context, host string) error {
	result := r.db.WithContext(ctx).Delete(&models.TenantDomainModel{}, "host = ?", identity.NormalizeHost(host))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormDomainRepository implements identity.DomainRepository
var _ identity.DomainRepository = (*GormDomainRepository)(nil)
