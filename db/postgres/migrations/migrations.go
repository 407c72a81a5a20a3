// Package migrations embeds the Postgres schema for the tracker store.
package migrations

import "embed"

// FS holds the *.up.sql files in lexical apply order.
//
//go:embed *.up.sql
var FS embed.FS
