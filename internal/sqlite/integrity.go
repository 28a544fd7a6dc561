// This file implements the consistency audit and file-level backup and
// restore of the database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

// backupExt is the file extension of backups written by Backup.
const backupExt = ".db"

// CheckIntegrity audits the attached database with PRAGMA integrity_check
// and PRAGMA foreign_key_check. Problems come back as *types.IntegrityError.
func (b *Backend) CheckIntegrity(ctx context.Context) error {
	return b.withDB(func(db *sql.DB) error {
		return checkIntegrity(ctx, db)
	})
}

func checkIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			rows.Close()
			return fmt.Errorf("scanning integrity check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}

	fk, err := migrate.ForeignKeyProblems(ctx, db)
	if err != nil {
		return err
	}
	problems = append(problems, fk...)
	if len(problems) > 0 {
		return &types.IntegrityError{Problems: problems}
	}
	return nil
}

// Backup writes a consistent copy of the database into dir with VACUUM INTO
// and verifies the copy before returning. The file is named by a UUID v7 so
// backups sort by creation time.
func (b *Backend) Backup(ctx context.Context, dir string) (*types.BackupInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCookbookDetached
	}
	return b.backup(ctx, dir)
}

// backup does the work of Backup. The caller holds b.mu.
func (b *Backend) backup(ctx context.Context, dir string) (*types.BackupInfo, error) {
	if dir == "" {
		return nil, types.ErrBackupDirRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating backup id: %w", err)
	}
	path := filepath.Join(dir, id.String()+backupExt)

	if _, err := b.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("writing backup %s: %w", path, err)
	}
	if err := verifyBackup(ctx, path); err != nil {
		os.Remove(path)
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading backup %s: %w", path, err)
	}
	info := &types.BackupInfo{
		ID:        id.String(),
		Path:      path,
		SizeBytes: fi.Size(),
		CreatedAt: backupTime(id),
	}
	b.logger.Info("wrote backup",
		zap.String("path", path),
		zap.Int64("size_bytes", info.SizeBytes))
	return info, nil
}

// verifyBackup opens the file at path on its own and runs the integrity
// audit against it.
func verifyBackup(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	// Plain open: the backup keeps its own journal mode.
	db, err := sql.Open("sqlite", fileURI(path, nil))
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer db.Close()
	if err := checkIntegrity(ctx, db); err != nil {
		// A file SQLite cannot read at all is reported as a damaged backup.
		var ie *types.IntegrityError
		if !errors.As(err, &ie) {
			err = &types.IntegrityError{Problems: []string{err.Error()}}
		}
		return fmt.Errorf("verifying backup %s: %w", path, err)
	}
	return nil
}

// backupTime recovers the creation time from the 48-bit millisecond
// timestamp at the front of a UUID v7.
func backupTime(id uuid.UUID) time.Time {
	var ms int64
	for _, b := range id[:6] {
		ms = ms<<8 | int64(b)
	}
	return time.UnixMilli(ms).UTC()
}

// ListBackups returns the backups in dir, newest first. Files not named by
// Backup are ignored. A missing directory has no backups.
func ListBackups(dir string) ([]types.BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []types.BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	backups := []types.BackupInfo{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, backupExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, backupExt))
		if err != nil || id.Version() != 7 {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("reading backup %s: %w", name, err)
		}
		backups = append(backups, types.BackupInfo{
			ID:        id.String(),
			Path:      filepath.Join(dir, name),
			SizeBytes: fi.Size(),
			CreatedAt: backupTime(id),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

// RestoreBackup replaces the database described by config with the backup at
// backupPath. The backend for config must be detached. The backup is verified
// first and copied into place through a temporary file, so a failed restore
// leaves the live database untouched.
func RestoreBackup(ctx context.Context, backupPath string, config types.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := verifyBackup(ctx, backupPath); err != nil {
		return err
	}

	dbPath := databasePath(config)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".restore-*")
	if err != nil {
		return fmt.Errorf("creating restore file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src, err := os.Open(backupPath)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("opening backup: %w", err)
	}
	_, err = io.Copy(tmp, src)
	src.Close()
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copying backup: %w", err)
	}

	// Stale WAL and shared-memory files belong to the old database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", dbPath+suffix, err)
		}
	}
	if err := os.Rename(tmp.Name(), dbPath); err != nil {
		return fmt.Errorf("replacing database: %w", err)
	}

	logger.Info("restored backup",
		zap.String("backup", backupPath),
		zap.String("path", dbPath))
	return nil
}
