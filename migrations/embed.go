// Package migrations embeds the catalog schema migrations applied by cmd/migrate and the integration tests.
package migrations

import "embed"

// FS holds the versioned *.up.sql and *.down.sql files
//
//go:embed *.sql
var FS embed.FS
