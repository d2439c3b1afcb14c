// Package migrations embeds the SQL schema so it can be applied at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
