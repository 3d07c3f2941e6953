package tenant

import (
	"strings"

	"gorm.io/gorm"
)

// NamespaceGuard provides GORM callback hooks that keep tenant-owned tables inside a bound scope
type NamespaceGuard struct {
	tables map[string]struct{}
}

// NewNamespaceGuard creates a guard for the given tenant-owned table names
func NewNamespaceGuard(tables []string) *NamespaceGuard {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[strings.ToLower(t)] = struct{}{}
	}
	return &NamespaceGuard{tables: set}
}

// RegisterCallbacks registers guard callbacks with GORM
func (g *NamespaceGuard) RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("tenant:guard_create", g.check); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("tenant:guard_query", g.check); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:guard_update", g.check); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("tenant:guard_delete", g.check); err != nil {
		return err
	}
	return cb.Row().Before("gorm:row").Register("tenant:guard_row", g.check)
}

// check adds an error to statements that reach tenant tables without a bound namespace.
// Raw SQL carries no table name and is not inspected.
func (g *NamespaceGuard) check(db *gorm.DB) {
	schema, table := splitTable(db.Statement.Table)
	if _, owned := g.tables[table]; !owned {
		return
	}

	bound, ok := BoundNamespace(db.Statement.Context)
	if !ok {
		_ = db.AddError(ErrUnboundTenantTable)
		return
	}
	if schema != "" && schema != bound {
		_ = db.AddError(ErrNamespaceOverride)
	}
}

// IsTenantTable reports whether the guard protects table
func (g *NamespaceGuard) IsTenantTable(table string) bool {
	_, t := splitTable(table)
	_, ok := g.tables[t]
	return ok
}

func splitTable(name string) (schema, table string) {
	name = strings.ToLower(strings.ReplaceAll(name, `"`, ""))
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// EnableNamespaceGuard registers a guard for tables on db
func EnableNamespaceGuard(db *gorm.DB, tables []string) error {
	return NewNamespaceGuard(tables).RegisterCallbacks(db)
}

// DisableNamespaceGuard removes the guard callbacks. It is meant for tests.
func DisableNamespaceGuard(db *gorm.DB) {
	_ = db.Callback().Create().Remove("tenant:guard_create")
	_ = db.Callback().Query().Remove("tenant:guard_query")
	_ = db.Callback().Update().Remove("tenant:guard_update")
	_ = db.Callback().Delete().Remove("tenant:guard_delete")
	_ = db.Callback().Row().Remove("tenant:guard_row")
}
