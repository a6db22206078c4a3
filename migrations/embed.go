// Package migrations embeds the SQL schema of the diagnostics store.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files, passed to database.Migrate.
//
//go:embed *.sql
var FS embed.FS
