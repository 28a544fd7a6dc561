package sqlite

import (
	"embed"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Chain returns the schema migration chain embedded in the binary.
func Chain() ([]migrate.Migration, error) {
	return migrate.LoadChain(migrationFS, "migrations")
}
