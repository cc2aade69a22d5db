// Package migrations embeds the schema migration files at compile time so
// the binary deploys without external file dependencies.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
