// Package migrations embeds the Postgres schema migrations.
package migrations

import "embed"

// FS holds the *.sql migration files for golang-migrate's iofs source.
//
//go:embed *.sql
var FS embed.FS
