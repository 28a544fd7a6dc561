package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recipebox/pkg/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func TestNewBackend(t *testing.T) {
	cookbook := sqlite.NewBackend(nil)
	require.NoError(t, cookbook.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	recipes, err := cookbook.Recipes()
	require.NoError(t, err)
	r, err := recipes.Create(context.Background(), &types.Recipe{Title: "Tamagoyaki"})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	require.NoError(t, cookbook.Detach())
	_, err = cookbook.Recipes()
	assert.ErrorIs(t, err, types.ErrCookbookDetached)
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := sqlite.ListBackups(t.TempDir() + "/absent")
	require.NoError(t, err)
	assert.Empty(t, backups)
}
