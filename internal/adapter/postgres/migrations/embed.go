// Package migrations embeds the events schema for the goose provider.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
