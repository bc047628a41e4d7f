package archive

import "embed"

// Migrations holds the archive schema as golang-migrate files under
// MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"
