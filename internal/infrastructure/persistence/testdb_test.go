package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/models"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testNamespace = "tenant_0123456789abcdef0123456789abcdef"

// setupSQLiteDB opens an in-memory database with catalog and tenant tables side by side.
// The namespace guard is registered after migration, as it is in production.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.TenantModel{},
		&models.TenantDomainModel{},
		&models.MembershipModel{},
		&models.BillingEventModel{},
		&models.TenantDescriptorModel{},
		&models.SubscriptionModel{},
		&models.RoleGrantModel{},
		&models.InvoiceLineModel{},
	))
	require.NoError(t, tenant.EnableNamespaceGuard(db, models.TenantTableNames))
	return db
}

// boundContext returns a context carrying the test namespace marker
func boundContext() context.Context {
	return tenant.WithBoundNamespace(context.Background(), testNamespace)
}
