package migrations

import "embed"

// FS contains the offline queue schema.
//
//go:embed *.sql
var FS embed.FS
