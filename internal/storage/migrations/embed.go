// Package migrations embeds the SQL schema migrations applied by storage.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
