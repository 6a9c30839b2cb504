package migrations

import "embed"

// FS contains embedded SQLite migrations for sector world storage.
//
//go:embed *.sql
var FS embed.FS
