// Package migrations embeds the link ledger schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
