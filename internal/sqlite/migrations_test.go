package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newChainRunner(t *testing.T) (*migrate.Runner, *sql.DB) {
	t.Helper()
	db, err := openDB(filepath.Join(t.TempDir(), types.DatabaseFileName), types.DefaultBusyTimeoutMS)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	chain, err := Chain()
	require.NoError(t, err)
	runner, err := migrate.New(db, chain, nil)
	require.NoError(t, err)
	return runner, db
}

// schemaSnapshot returns every schema object's SQL keyed by name.
func schemaSnapshot(t *testing.T, db *sql.DB) map[string]string {
	t.Helper()
	rows, err := db.Query("SELECT name, COALESCE(sql, '') FROM sqlite_master ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, ddl string
		require.NoError(t, rows.Scan(&name, &ddl))
		out[name] = ddl
	}
	require.NoError(t, rows.Err())
	return out
}

func TestChain(t *testing.T) {
	chain, err := Chain()
	require.NoError(t, err)

	var revisions []string
	for _, m := range chain {
		revisions = append(revisions, m.Revision)
		assert.True(t, m.Reversible(), m.Revision)
	}
	assert.Equal(t, []string{
		"0001_create_masters",
		"0002_create_recipe",
		"0003_create_translation_cache",
		"0004_recipe_ingredient_name",
	}, revisions)
}

func TestMigrations_UpTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	runner, db := newChainRunner(t)

	n, err := runner.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	first := schemaSnapshot(t, db)
	for _, table := range types.StandardTableNames {
		assert.Contains(t, first, table)
	}

	n, err = runner.Up(ctx)
	assert.ErrorIs(t, err, migrate.ErrNoChange)
	assert.Zero(t, n)
	assert.Equal(t, first, schemaSnapshot(t, db))
}

func TestMigrations_DownToBaseAndBack(t *testing.T) {
	ctx := context.Background()
	runner, db := newChainRunner(t)

	_, err := runner.Up(ctx)
	require.NoError(t, err)
	head := schemaSnapshot(t, db)

	n, err := runner.To(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	base := schemaSnapshot(t, db)
	for _, table := range types.StandardTableNames {
		assert.NotContains(t, base, table)
	}

	_, err = runner.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, head, schemaSnapshot(t, db))
}

func TestMigrations_IngredientNameBackfill(t *testing.T) {
	ctx := context.Background()
	runner, db := newChainRunner(t)

	_, err := runner.To(ctx, "0003_create_translation_cache")
	require.NoError(t, err)

	// Lines in the shape without a name column.
	for _, stmt := range []string{
		"INSERT INTO ingredient (id, name, name_normalized) VALUES (1, 'にんじん', 'にんじん')",
		"INSERT INTO recipe (id, title, created_at, updated_at) VALUES (1, 'Curry', '2026-01-01T00:00:00.000000000Z', '2026-01-01T00:00:00.000000000Z')",
		"INSERT INTO recipe_ingredient (id, recipe_id, ingredient_id, note, order_index) VALUES (1, 1, 1, 'diced', 0)",
		"INSERT INTO recipe_ingredient (id, recipe_id, ingredient_id, note, order_index) VALUES (2, 1, NULL, 'salt', 1)",
		"INSERT INTO recipe_ingredient (id, recipe_id, ingredient_id, note, order_index) VALUES (3, 1, NULL, NULL, 2)",
		"INSERT INTO recipe_step (recipe_id, step_number, description) VALUES (1, 1, 'Chop')",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	n, err := runner.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	names := map[int64]string{}
	rows, err := db.Query("SELECT id, name FROM recipe_ingredient ORDER BY id")
	require.NoError(t, err)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		require.NoError(t, rows.Scan(&id, &name))
		names[id] = name
	}
	require.NoError(t, rows.Err())
	rows.Close()

	assert.Equal(t, map[int64]string{1: "にんじん", 2: "salt", 3: "(unnamed)"}, names)

	var steps int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM recipe_step WHERE recipe_id = 1").Scan(&steps))
	assert.Equal(t, 1, steps, "rebuild does not cascade into sibling tables")

	problems, err := migrate.ForeignKeyProblems(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, problems)

	// Going back folds a diverging name into the note.
	_, err = db.Exec("UPDATE recipe_ingredient SET name = 'carrot' WHERE id = 1")
	require.NoError(t, err)
	_, err = runner.Steps(ctx, -1)
	require.NoError(t, err)

	var note string
	require.NoError(t, db.QueryRow("SELECT note FROM recipe_ingredient WHERE id = 1").Scan(&note))
	assert.Equal(t, "carrot (diced)", note)
}
