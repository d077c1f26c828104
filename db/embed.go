// Package db embeds the schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for the commerce tables, applied idempotently on
// boot (every statement is CREATE ... IF NOT EXISTS).
//
//go:embed migrations/001_schema.sql
var Schema string
