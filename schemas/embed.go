// Package schemas embeds the MySQL schema of the schedule store.
package schemas

import "embed"

// Migrations holds the golang-migrate files, applied in version order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
