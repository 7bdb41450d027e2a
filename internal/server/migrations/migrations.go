// Package migrations embeds the goose SQL migrations of the key server
// database (PostgreSQL).
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
