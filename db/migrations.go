// Package db ships the Postgres schema with the binary.
package db

import "embed"

// Migrations holds migrations/*.sql, applied in lexical order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
