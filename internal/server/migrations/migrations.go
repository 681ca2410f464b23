// Package migrations embeds the entitlement server's goose migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
