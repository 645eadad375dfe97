package migrations

import "embed"

// Embedded migration files bundled at compile time
// Single binary deployment without external file dependencies
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// Dir is the directory inside SqliteMigrations holding the script pairs.
const Dir = "sqlite"
