package migration

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditNamespaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT t.slug, t.namespace, t.status`).
		WillReturnRows(sqlmock.NewRows([]string{"slug", "namespace", "status", "exists"}).
			AddRow("acme", "tenant_0a1b", "active", true).
			AddRow("globex", "tenant_9f8e", "suspended", false))

	got, err := AuditNamespaces(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []NamespaceStatus{
		{Slug: "acme", Namespace: "tenant_0a1b", Status: "active", Exists: true},
		{Slug: "globex", Namespace: "tenant_9f8e", Status: "suspended", Exists: false},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditNamespaces_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT t.slug`).WillReturnError(assert.AnError)

	_, err = AuditNamespaces(context.Background(), db)
	assert.ErrorIs(t, err, assert.AnError)
}
