package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantcore/backend/internal/domain/identity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type grantRow struct {
	PrincipalID string
	Role        string
}

func (grantRow) TableName() string { return "role_grants" }

type catalogRow struct {
	ID   string
	Slug string
}

func (catalogRow) TableName() string { return "tenants" }

const testNamespace = "tenant_0123456789abcdef0123456789abcdef"

func setupCallbackMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, EnableNamespaceGuard(gormDB, []string{"role_grants", "subscription"}))

	return gormDB, mock, mockDB
}

func TestNamespaceGuard_RejectsUnboundTenantTables(t *testing.T) {
	db, mock, mockDB := setupCallbackMockDB(t)
	defer mockDB.Close()

	var rows []grantRow
	err := db.WithContext(context.Background()).Find(&rows).Error
	assert.ErrorIs(t, err, ErrUnboundTenantTable)

	err = db.WithContext(context.Background()).Create(&grantRow{PrincipalID: "p", Role: "admin"}).Error
	assert.ErrorIs(t, err, ErrUnboundTenantTable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNamespaceGuard_AllowsBoundScope(t *testing.T) {
	db, mock, mockDB := setupCallbackMockDB(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "role_grants"`).
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "role"}).AddRow("p", "admin"))

	ctx := WithBoundNamespace(context.Background(), testNamespace)
	var rows []grantRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	assert.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNamespaceGuard_IgnoresCatalogTables(t *testing.T) {
	db, mock, mockDB := setupCallbackMockDB(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}))

	var rows []catalogRow
	require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNamespaceGuard_RejectsExplicitOtherSchema(t *testing.T) {
	db, mock, mockDB := setupCallbackMockDB(t)
	defer mockDB.Close()

	ctx := WithBoundNamespace(context.Background(), testNamespace)
	var rows []grantRow
	err := db.WithContext(ctx).Table("tenant_ffffffffffffffffffffffffffffffff.role_grants").Find(&rows).Error
	assert.ErrorIs(t, err, ErrNamespaceOverride)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisableNamespaceGuard(t *testing.T) {
	db, mock, mockDB := setupCallbackMockDB(t)
	defer mockDB.Close()

	DisableNamespaceGuard(db)

	mock.ExpectQuery(`SELECT \* FROM "role_grants"`).
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "role"}))

	var rows []grantRow
	require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNamespaceGuard_IsTenantTable(t *testing.T) {
	g := NewNamespaceGuard([]string{"Role_Grants"})
	assert.True(t, g.IsTenantTable("role_grants"))
	assert.True(t, g.IsTenantTable(`"tenant_x"."role_grants"`))
	assert.False(t, g.IsTenantTable("tenants"))
}

func TestBoundNamespace(t *testing.T) {
	_, ok := BoundNamespace(context.Background())
	assert.False(t, ok)

	ns, ok := BoundNamespace(WithBoundNamespace(context.Background(), testNamespace))
	assert.True(t, ok)
	assert.Equal(t, testNamespace, ns)

	assert.True(t, ValidNamespace(testNamespace))
	assert.False(t, ValidNamespace("public"))
	assert.False(t, ValidNamespace(`tenant_x"; DROP SCHEMA public; --`))
	assert.True(t, ValidNamespace(identity.NamespaceFor(uuid.New()).String()))
}
