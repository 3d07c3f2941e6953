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
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/infrastructure/persistence/tenant"
)

func activeSnapshot() identity.TenantSnapshot {
	id := uuid.New()
	return identity.TenantSnapshot{
		ID:        id,
		Slug:      "acme",
		Namespace: identity.NamespaceFor(id),
		Status:    identity.TenantStatusActive,
	}
}

func TestGormSchemaScope_ScopedAcquire(t *testing.T) {
	snap := activeSnapshot()
	binding, err := snap.Binding()
	require.NoError(t, err)
	ns := snap.Namespace.String()
	setPath := regexp.QuoteMeta(`SET LOCAL search_path TO "` + ns + `"`)

	t.Run("commits with the search path set to the namespace", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		scope := NewGormSchemaScope(db.DB)

		mock.ExpectBegin()
		mock.ExpectExec(setPath).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(tenantLockKey(snap.ID)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "role_grants" WHERE principal_id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"principal_id", "role"}))
		mock.ExpectCommit()

		err := scope.ScopedAcquire(context.Background(), binding, func(ctx context.Context, repos tenancy.TenantRepositories) error {
			bound, ok := tenant.BoundNamespace(ctx)
			assert.True(t, ok)
			assert.Equal(t, ns, bound)

			require.NoError(t, repos.LockTenant(ctx))
			_, err := repos.RoleGrants().FindByPrincipal(ctx, uuid.New())
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("body error rolls back", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		scope := NewGormSchemaScope(db.DB)

		mock.ExpectBegin()
		mock.ExpectExec(setPath).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := scope.ScopedAcquire(context.Background(), binding, func(context.Context, tenancy.TenantRepositories) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		scope := NewGormSchemaScope(db.DB)

		mock.ExpectBegin()
		mock.ExpectExec(setPath).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = scope.ScopedAcquire(context.Background(), binding, func(context.Context, tenancy.TenantRepositories) error {
				panic("handler crashed")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed bind never runs the body", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		scope := NewGormSchemaScope(db.DB)

		mock.ExpectBegin()
		mock.ExpectExec(setPath).WillReturnError(errors.New("schema does not exist"))
		mock.ExpectRollback()

		err := scope.ScopedAcquire(context.Background(), binding, func(context.Context, tenancy.TenantRepositories) error {
			t.Fatal("body must not run")
			return nil
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero binding is refused without a transaction", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		scope := NewGormSchemaScope(db.DB)

		err := scope.ScopedAcquire(context.Background(), identity.Binding{}, func(context.Context, tenancy.TenantRepositories) error {
			t.Fatal("body must not run")
			return nil
		})
		assert.ErrorIs(t, err, tenant.ErrInvalidNamespace)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ledger is addressed through the catalog schema", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		scope := NewGormSchemaScope(db.DB)

		mock.ExpectBegin()
		mock.ExpectExec(setPath).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE "public"."billing_events" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := scope.ScopedAcquire(context.Background(), binding, func(ctx context.Context, repos tenancy.TenantRepositories) error {
			return repos.Ledger().MarkProcessed(ctx, "evt_1")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantSchemaStatements(t *testing.T) {
	stmts := TenantSchemaStatements()
	require.Len(t, stmts, 5)
	for _, s := range stmts {
		assert.Regexp(t, `;$`, s)
		assert.NotContains(t, s, "--")
		assert.NotContains(t, s, "public.")
	}
	assert.Contains(t, stmts[0], "CREATE TABLE tenant_descriptor")
	assert.Contains(t, stmts[4], "CREATE INDEX idx_invoice_lines_created")
}

func TestTenantLockKey(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, tenantLockKey(a), tenantLockKey(a))
	assert.NotEqual(t, tenantLockKey(a), tenantLockKey(b))
}
