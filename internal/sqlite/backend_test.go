// Tests for the SQLite backend lifecycle.
package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func testConfig(dataDir string) types.Config {
	return types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	}
}

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend(nil)
	require.NoError(t, b.Attach(testConfig(t.TempDir())))
	t.Cleanup(func() { b.Detach() })
	return b
}

func recipesOf(t *testing.T, b *Backend) types.RecipeTable {
	t.Helper()
	rt, err := b.Recipes()
	require.NoError(t, err)
	return rt
}

func ingredientsOf(t *testing.T, b *Backend) types.IngredientTable {
	t.Helper()
	it, err := b.Ingredients()
	require.NoError(t, err)
	return it
}

func tagsOf(t *testing.T, b *Backend) types.TagTable {
	t.Helper()
	tt, err := b.Tags()
	require.NoError(t, err)
	return tt
}

func translationsOf(t *testing.T, b *Backend) types.TranslationTable {
	t.Helper()
	tt, err := b.Translations()
	require.NoError(t, err)
	return tt
}

// countRows counts rows of table matching where, e.g. "recipe_id = 3".
func countRows(t *testing.T, b *Backend, table, where string, args ...any) int {
	t.Helper()
	var n int
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	require.NoError(t, b.db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestBackend_Attach(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	b := NewBackend(nil)
	require.NoError(t, b.Attach(testConfig(dataDir)))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dataDir, types.DatabaseFileName))
	assert.NoError(t, err, "database file should be created")
	assert.Equal(t, filepath.Join(dataDir, types.DatabaseFileName), b.Path())

	for _, table := range types.StandardTableNames {
		assert.Equal(t, 0, countRows(t, b, table, ""), table)
	}

	assert.ErrorIs(t, b.Attach(testConfig(dataDir)), types.ErrAlreadyAttached)
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config types.Config
		want   error
	}{
		{name: "empty backend", config: types.Config{DataDir: t.TempDir()}, want: types.ErrBackendEmpty},
		{name: "unknown backend", config: types.Config{Backend: "postgres", DataDir: t.TempDir()}, want: types.ErrBackendUnknown},
		{
			name:   "backup without dir",
			config: types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), BackupBeforeMigrate: true},
			want:   types.ErrBackupDirRequired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend(nil)
			assert.ErrorIs(t, b.Attach(tt.config), tt.want)
			_, err := b.Recipes()
			assert.ErrorIs(t, err, types.ErrCookbookDetached)
		})
	}
}

func TestBackend_Detach(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(nil)
	require.NoError(t, b.Attach(testConfig(t.TempDir())))

	rt := recipesOf(t, b)
	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "second Detach should not error")

	_, err := b.Recipes()
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
	_, err = b.Ingredients()
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
	_, err = b.Tags()
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
	_, err = b.Translations()
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
	_, err = b.Migrator()
	assert.ErrorIs(t, err, types.ErrCookbookDetached)

	// A table obtained before Detach stops working too.
	_, err = rt.Create(ctx, &types.Recipe{Title: "Late"})
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
	_, err = rt.Get(ctx, 1, types.ReadOptions{})
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
	assert.ErrorIs(t, b.CheckIntegrity(ctx), types.ErrCookbookDetached)
}

func TestBackend_DataPersistsAcrossAttach(t *testing.T) {
	ctx := context.Background()
	config := testConfig(t.TempDir())

	b := NewBackend(nil)
	require.NoError(t, b.Attach(config))
	created, err := recipesOf(t, b).Create(ctx, &types.Recipe{Title: "Miso soup", Servings: types.IntPtr(2)})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := NewBackend(nil)
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()

	got, err := recipesOf(t, b2).Get(ctx, created.ID, types.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestBackend_SkipMigrate(t *testing.T) {
	ctx := context.Background()
	config := testConfig(t.TempDir())
	config.SkipMigrate = true

	b := NewBackend(nil)
	require.NoError(t, b.Attach(config))
	defer b.Detach()

	runner, err := b.Migrator()
	require.NoError(t, err)
	st, err := runner.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", st.Current)
	assert.Len(t, st.Pending, 4)

	_, err = recipesOf(t, b).Create(ctx, &types.Recipe{Title: "No schema yet"})
	assert.Error(t, err)
}

func TestBackend_AttachMigratesToHead(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	runner, err := b.Migrator()
	require.NoError(t, err)
	st, err := runner.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.AtHead())
	assert.Equal(t, "0004_recipe_ingredient_name", st.Current)
}

func TestBackend_BackupBeforeMigrate(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	backupDir := filepath.Join(t.TempDir(), "backups")

	// Leave a database one migration behind head.
	config := testConfig(dataDir)
	config.SkipMigrate = true
	b := NewBackend(nil)
	require.NoError(t, b.Attach(config))
	runner, err := b.Migrator()
	require.NoError(t, err)
	_, err = runner.To(ctx, "0003_create_translation_cache")
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	config = testConfig(dataDir)
	config.BackupBeforeMigrate = true
	config.BackupDir = backupDir
	b = NewBackend(nil)
	require.NoError(t, b.Attach(config))

	backups, err := ListBackups(backupDir)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	require.NoError(t, b.Detach())

	// Already at head: nothing pending, no new backup.
	require.NoError(t, b.Attach(config))
	defer b.Detach()
	backups, err = ListBackups(backupDir)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestDataSourceName(t *testing.T) {
	dsn := dataSourceName("/tmp/data/recipebox.db", 2500)
	assert.Contains(t, dsn, "file:///tmp/data/recipebox.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "busy_timeout%282500%29")
}

func TestFileURI_EscapesPath(t *testing.T) {
	assert.Equal(t, "file:///tmp/my%23recipes%20100%25/a%3Fb/recipebox.db",
		fileURI("/tmp/my#recipes 100%/a?b/recipebox.db", nil))

	rel := fileURI(filepath.Join("data", "recipebox.db"), nil)
	assert.Contains(t, rel, "file:///")
	assert.Contains(t, rel, "/data/recipebox.db")
}

func TestBackend_AttachDataDirWithURICharacters(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	dataDir := filepath.Join(parent, "my#recipes 100%")
	config := testConfig(dataDir)

	b := NewBackend(nil)
	require.NoError(t, b.Attach(config))
	created, err := recipesOf(t, b).Create(ctx, &types.Recipe{Title: "Hash brown"})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	assert.FileExists(t, filepath.Join(dataDir, types.DatabaseFileName))
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1, "nothing written beside the data directory")
	assert.Equal(t, "my#recipes 100%", entries[0].Name())

	require.NoError(t, b.Attach(config))
	defer b.Detach()
	got, err := recipesOf(t, b).Get(ctx, created.ID, types.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hash brown", got.Title)

	// Backups under such a directory verify against the file just written.
	info, err := b.Backup(ctx, filepath.Join(dataDir, "backups #1"))
	require.NoError(t, err)
	assert.FileExists(t, info.Path)
	assert.NoError(t, verifyBackup(ctx, info.Path))
}

func TestBackend_MigratorDownFromHead(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	runner, err := b.Migrator()
	require.NoError(t, err)

	n, err := runner.Steps(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = runner.Up(ctx)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n, err = runner.Down(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	current, err := runner.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	n, err = runner.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
