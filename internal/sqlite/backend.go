// Package sqlite implements the SQLite storage backend for recipebox.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

var _ types.Cookbook = (*Backend)(nil)

// Backend implements the Cookbook interface on a single SQLite file. The
// mutex guards the attach lifecycle; row-level concurrency is left to
// SQLite's locking.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	dbPath   string
	logger   *zap.Logger

	recipes      *recipesTable
	ingredients  *ingredientsTable
	tags         *tagsTable
	translations *translationsTable
}

// NewBackend creates a new SQLite backend instance. The backend is not
// attached; call Attach with a Config to open the database. A nil logger
// discards output.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger.Named("sqlite")}
}

// dataSourceName builds the modernc DSN for path. Foreign keys are enforced
// on every pooled connection and transactions take the write lock up front
// so concurrent writers queue on busy_timeout instead of failing on upgrade.
func dataSourceName(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return fileURI(path, q)
}

// fileURI returns path as an absolute SQLite URI filename carrying q. Path
// segments are percent-escaped because SQLite ends the path at '?' or '#'
// and decodes '%' sequences.
func fileURI(path string, q url.Values) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // drive letter
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: q.Encode()}
	return u.String()
}

// databasePath returns the SQLite file location for config.
func databasePath(config types.Config) string {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, types.DatabaseFileName)
}

func openDB(path string, busyTimeoutMS int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName(path, busyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return db, nil
}

// Attach opens the database in config.DataDir, creating the directory and
// file if needed, and upgrades the schema to head unless config.SkipMigrate
// is set. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dbPath := databasePath(config)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := openDB(dbPath, config.BusyTimeout())
	if err != nil {
		return err
	}

	b.db = db
	b.dbPath = dbPath
	b.config = config

	if !config.SkipMigrate {
		if err := b.migrateLocked(context.Background()); err != nil {
			db.Close()
			b.db = nil
			return err
		}
	}

	b.attached = true
	b.recipes = &recipesTable{backend: b}
	b.ingredients = &ingredientsTable{backend: b}
	b.tags = &tagsTable{backend: b}
	b.translations = &translationsTable{backend: b}

	b.logger.Info("attached", zap.String("path", dbPath))
	return nil
}

// migrateLocked upgrades the open database to head, backing it up first when
// the config asks for it and there is something to back up.
func (b *Backend) migrateLocked(ctx context.Context) error {
	runner, err := b.newRunner()
	if err != nil {
		return err
	}
	if b.config.BackupBeforeMigrate {
		current, err := runner.Current(ctx)
		if err != nil {
			return err
		}
		pending, err := runner.Pending(ctx)
		if err != nil {
			return err
		}
		if current != "" && len(pending) > 0 {
			if _, err := b.backup(ctx, b.config.BackupDir); err != nil {
				return fmt.Errorf("backup before migrate: %w", err)
			}
		}
	}
	if _, err := runner.Up(ctx); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrCookbookDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.recipes = nil
	b.ingredients = nil
	b.tags = nil
	b.translations = nil

	b.logger.Info("detached", zap.String("path", b.dbPath))
	return nil
}

// Path returns the database file of the attached backend.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dbPath
}

// Recipes returns the recipe table.
func (b *Backend) Recipes() (types.RecipeTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCookbookDetached
	}
	return b.recipes, nil
}

// Ingredients returns the ingredient master table.
func (b *Backend) Ingredients() (types.IngredientTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCookbookDetached
	}
	return b.ingredients, nil
}

// Tags returns the tag master table.
func (b *Backend) Tags() (types.TagTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCookbookDetached
	}
	return b.tags, nil
}

// Translations returns the translation cache.
func (b *Backend) Translations() (types.TranslationTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCookbookDetached
	}
	return b.translations, nil
}

// Migrator returns a migration runner bound to the attached database.
func (b *Backend) Migrator() (*migrate.Runner, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCookbookDetached
	}
	return b.newRunner()
}

func (b *Backend) newRunner() (*migrate.Runner, error) {
	chain, err := Chain()
	if err != nil {
		return nil, err
	}
	return migrate.New(b.db, chain, b.logger.Named("migrate"))
}

// withTx runs fn in a write transaction. The read lock keeps Detach from
// closing the database underneath it.
func (b *Backend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrCookbookDetached
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", translateError(err))
	}
	return nil
}

// withDB runs a read that needs no transaction.
func (b *Backend) withDB(fn func(db *sql.DB) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrCookbookDetached
	}
	return fn(b.db)
}
