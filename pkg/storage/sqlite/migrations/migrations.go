package migrations

import "embed"

// FS holds the archive tier schema migrations.
//
//go:embed *.sql
var FS embed.FS
