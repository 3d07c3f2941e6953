package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMembershipRepository implements identity.MembershipRepository on the catalog
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GormMembershipRepository
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// IsMember reports whether principalID belongs to tenantID
func (r *GormMembershipRepository) IsMember(ctx context.Context, tenantID, principalID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MembershipModel{}).
		Where("tenant_id = ? AND principal_id = ?", tenantID, principalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByTenant lists the members of tenantID
func (r *GormMembershipRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]identity.Membership, error) {
	var memberModels []models.MembershipModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&memberModels).Error; err != nil {
		return nil, err
	}

	members := make([]identity.Membership, len(memberModels))
	for i, model := range memberModels {
		members[i] = *model.ToDomain()
	}
	return members, nil
}

// Add inserts a membership
func (r *GormMembershipRepository) Add(ctx context.Context, membership *identity.Membership) error {
	if err := r.db.WithContext(ctx).Create(models.MembershipModelFromDomain(membership)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Principal is already a member of this tenant")
		}
		return err
	}
	return nil
}

// Ensure GormMembershipRepository implements identity.MembershipRepository
var _ identity.MembershipRepository = (*GormMembershipRepository)(nil)
