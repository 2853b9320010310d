// Package migrations embeds the local credential schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
