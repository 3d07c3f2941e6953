package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
)

func newProvisioningTenant(t *testing.T) (*identity.Tenant, *identity.Membership) {
	tn, err := identity.NewTenant("acme", uuid.New())
	require.NoError(t, err)
	owner, err := identity.NewMembership(tn.ID, tn.OwnerID, identity.MembershipRoleOwner)
	require.NoError(t, err)
	return tn, owner
}

func TestGormTenantProvisioner_Provision(t *testing.T) {
	t.Run("catalog rows and namespace commit together", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		p := NewGormTenantProvisioner(db.DB)
		tn, owner := newProvisioningTenant(t)
		ns := tn.Namespace.String()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "tenants"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "tenant_memberships"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA "` + ns + `"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL search_path TO "` + ns + `"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		for _, stmt := range TenantSchemaStatements() {
			mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectExec(`INSERT INTO "tenant_descriptor"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL search_path TO DEFAULT`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE "tenants" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, p.Provision(context.Background(), tn, owner))
		assert.Equal(t, identity.TenantStatusActive, tn.Status)
		assert.Len(t, tn.PendingEvents(), 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed schema creation rolls back the catalog row", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		p := NewGormTenantProvisioner(db.DB)
		tn, owner := newProvisioningTenant(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "tenants"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "tenant_memberships"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`CREATE SCHEMA`).WillReturnError(errors.New("permission denied for database"))
		mock.ExpectRollback()

		err := p.Provision(context.Background(), tn, owner)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create namespace")
		assert.Equal(t, identity.TenantStatusProvisioning, tn.Status)
		assert.Empty(t, tn.PendingEvents())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed namespace is refused before any statement", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		p := NewGormTenantProvisioner(db.DB)
		tn, owner := newProvisioningTenant(t)
		tn.Namespace = `tenant_x"; DROP SCHEMA public; --`

		require.Error(t, p.Provision(context.Background(), tn, owner))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTenantProvisioner_Retire(t *testing.T) {
	db := setupSQLiteDB(t)
	ctx := context.Background()
	tenants := NewGormTenantRepository(db)
	domains := NewGormDomainRepository(db)
	p := NewGormTenantProvisioner(db)

	tn, _ := newProvisioningTenant(t)
	require.NoError(t, tenants.Create(ctx, tn))
	for _, host := range []string{"billing.acme.io", "app.acme.io"} {
		d, err := identity.NewTenantDomain(host, tn.ID)
		require.NoError(t, err)
		require.NoError(t, domains.Add(ctx, d))
	}

	require.NoError(t, tn.MarkDeleted())
	removed, err := p.Retire(ctx, tn)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	left, err := domains.FindByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	stored, err := tenants.FindByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.TenantStatusDeleted, stored.Status)
	assert.Equal(t, tn.Namespace, stored.Namespace)

	late, err := identity.NewTenantDomain("late.acme.io", tn.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, domains.Add(ctx, late), shared.ErrInvalidState)
}
