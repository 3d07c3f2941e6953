package persistence

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTenantProvisioner implements tenancy.Provisioner.
// Catalog rows and namespace DDL share one transaction; Postgres DDL is transactional,
// so a failure leaves neither the catalog entry nor the schema behind.
type GormTenantProvisioner struct {
	db *gorm.DB
}

// NewGormTenantProvisioner creates a new GormTenantProvisioner
func NewGormTenantProvisioner(db *gorm.DB) *GormTenantProvisioner {
	return &GormTenantProvisioner{db: db}
}

// Provision writes the catalog row and owner membership, creates the namespace with its
// tables and descriptor, then marks the tenant active.
func (p *GormTenantProvisioner) Provision(ctx context.Context, t *identity.Tenant, owner *identity.Membership) error {
	namespace := t.Namespace.String()
	if !t.Namespace.IsValid() {
		return fmt.Errorf("refusing to provision malformed namespace %q", namespace)
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenants := NewGormTenantRepository(tx)
		if err := tenants.Create(ctx, t); err != nil {
			return err
		}
		if err := NewGormMembershipRepository(tx).Add(ctx, owner); err != nil {
			return err
		}

		if err := tx.Exec("CREATE SCHEMA " + pq.QuoteIdentifier(namespace)).Error; err != nil {
			return fmt.Errorf("failed to create namespace: %w", err)
		}
		if err := p.writeDescriptor(ctx, tx, t, true); err != nil {
			return err
		}

		if err := t.MarkProvisioned(); err != nil {
			return err
		}
		return tenants.Save(ctx, t)
	})
}

// RenameSlug stores the new slug in the catalog and in the tenant's descriptor
func (p *GormTenantProvisioner) RenameSlug(ctx context.Context, t *identity.Tenant) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewGormTenantRepository(tx).Save(ctx, t); err != nil {
			return err
		}
		return p.writeDescriptor(ctx, tx, t, false)
	})
}

// Retire saves the deleted status and drops every host mapping of the tenant.
// The namespace itself is left in place.
func (p *GormTenantProvisioner) Retire(ctx context.Context, t *identity.Tenant) ([]identity.TenantDomain, error) {
	var removed []identity.TenantDomain
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewGormTenantRepository(tx).Save(ctx, t); err != nil {
			return err
		}
		domains := NewGormDomainRepository(tx)
		existing, err := domains.FindByTenant(ctx, t.ID)
		if err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", t.ID).Delete(&models.TenantDomainModel{}).Error; err != nil {
			return err
		}
		removed = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// writeDescriptor switches the transaction into the tenant namespace, optionally creates its
// tables, and writes the descriptor. The search_path is restored before returning.
func (p *GormTenantProvisioner) writeDescriptor(ctx context.Context, tx *gorm.DB, t *identity.Tenant, create bool) error {
	namespace := t.Namespace.String()
	if err := tx.Exec(searchPathStatement(namespace)).Error; err != nil {
		return fmt.Errorf("failed to bind namespace: %w", err)
	}
	if create {
		for _, stmt := range TenantSchemaStatements() {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to create namespace tables: %w", err)
			}
		}
	}

	descriptors := &gormDescriptorRepository{boundDB{tx: tx, namespace: namespace}}
	if err := descriptors.Put(ctx, t.Descriptor()); err != nil {
		return err
	}
	return tx.Exec("SET LOCAL search_path TO DEFAULT").Error
}

// Ensure GormTenantProvisioner implements tenancy.Provisioner
var _ tenancy.Provisioner = (*GormTenantProvisioner)(nil)
