// Package migrations embeds the SQLite schema for the kvstore backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
