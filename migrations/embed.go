package migrations

import "embed"

// FS embeds the SQL migration files so the server runs without a migrations directory
//
//go:embed *.sql
var FS embed.FS
