package persistence

import (
	"slices"
	"strings"

	"gorm.io/gorm/clause"
)

// listOrder whitelists the columns a list query may be ordered by.
// Client input never reaches the ORDER BY clause as raw SQL.
type listOrder struct {
	columns     []string
	fallback    string
	descDefault bool
}

var (
	tenantListOrder = listOrder{
		columns:     []string{"id", "slug", "status", "created_at", "updated_at"},
		fallback:    "created_at",
		descDefault: true,
	}
	// Ledger listings read oldest first so a sweep and an operator see the same order
	ledgerListOrder = listOrder{
		columns:  []string{"event_id", "type", "attempts", "received_at", "processed_at"},
		fallback: "received_at",
	}
)

// column returns field when whitelisted, the fallback otherwise
func (o listOrder) column(field string) string {
	field = strings.TrimSpace(field)
	if slices.Contains(o.columns, field) {
		return field
	}
	return o.fallback
}

// desc interprets dir as a direction; anything but asc/desc keeps the default
func (o listOrder) desc(dir string) bool {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "asc":
		return false
	case "desc":
		return true
	default:
		return o.descDefault
	}
}

// clause builds the ORDER BY column for a filter's OrderBy and OrderDir
func (o listOrder) clause(field, dir string) clause.OrderByColumn {
	return clause.OrderByColumn{
		Column: clause.Column{Name: o.column(field)},
		Desc:   o.desc(dir),
	}
}
