package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// NamespaceStatus reports whether a catalog tenant's schema exists
type NamespaceStatus struct {
	Slug      string
	Namespace string
	Status    string
	Exists    bool
}

const namespaceAuditQuery = `
SELECT t.slug, t.namespace, t.status,
       EXISTS (SELECT 1 FROM information_schema.schemata s WHERE s.schema_name = t.namespace)
FROM tenants t
WHERE t.status <> 'deleted'
ORDER BY t.created_at`

// AuditNamespaces lists every non-deleted tenant with the state of its schema.
// Tenant schemas are created at provisioning time, so a missing one means a
// provisioning transaction was bypassed or the schema was dropped by hand.
func AuditNamespaces(ctx context.Context, db *sql.DB) ([]NamespaceStatus, error) {
	rows, err := db.QueryContext(ctx, namespaceAuditQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to audit tenant namespaces: %w", err)
	}
	defer rows.Close()

	var result []NamespaceStatus
	for rows.Next() {
		var ns NamespaceStatus
		if err := rows.Scan(&ns.Slug, &ns.Namespace, &ns.Status, &ns.Exists); err != nil {
			return nil, err
		}
		result = append(result, ns)
	}
	return result, rows.Err()
}
