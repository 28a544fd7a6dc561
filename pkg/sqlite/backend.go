// Package sqlite provides the public API for the SQLite Cookbook backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

// NewBackend creates a new SQLite backend instance. A nil logger discards
// log output. The backend is not attached; call Attach with a Config to
// initialize.
//
// Example:
//
//	cookbook := sqlite.NewBackend(logger)
//	err := cookbook.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/recipebox",
//	})
//	defer cookbook.Detach()
func NewBackend(logger *zap.Logger) types.Cookbook {
	return sqlite.NewBackend(logger)
}

// ListBackups returns the backups in dir, newest first.
func ListBackups(dir string) ([]types.BackupInfo, error) {
	return sqlite.ListBackups(dir)
}

// RestoreBackup replaces the database described by config with a verified
// copy of the backup at backupPath. No backend may be attached to config's
// data directory while it runs.
func RestoreBackup(ctx context.Context, backupPath string, config types.Config, logger *zap.Logger) error {
	return sqlite.RestoreBackup(ctx, backupPath, config, logger)
}
