package assets

import (
	"embed"
)

// Lockout store migrations
//
//go:embed migrations/*.sql
var Migrations embed.FS
