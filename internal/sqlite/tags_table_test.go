package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func TestTagTable_CRUD(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tags := tagsOf(t, b)

	spicy, err := tags.Create(ctx, &types.Tag{Name: "spicy", Category: "taste"})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTagColor, spicy.Color)

	got, err := tags.Get(ctx, spicy.ID)
	require.NoError(t, err)
	assert.Equal(t, spicy, got)

	byName, err := tags.GetByName(ctx, "spicy")
	require.NoError(t, err)
	assert.Equal(t, spicy.ID, byName.ID)

	_, err = tags.Create(ctx, &types.Tag{Name: "spicy"})
	assert.True(t, types.IsConflict(err, types.ConstraintTagName), "got %v", err)

	_, err = tags.Create(ctx, &types.Tag{Name: "bento", Category: "meal"})
	require.NoError(t, err)
	_, err = tags.Create(ctx, &types.Tag{Name: "sweet", Category: "taste", Color: "#ffcc00"})
	require.NoError(t, err)

	taste, err := tags.Fetch(ctx, "taste")
	require.NoError(t, err)
	require.Len(t, taste, 2)
	assert.Equal(t, "spicy", taste[0].Name)
	assert.Equal(t, "sweet", taste[1].Name)

	all, err := tags.Fetch(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bento", all[0].Name)

	got.Color = "#00FF00"
	require.NoError(t, tags.Update(ctx, got))
	got, err = tags.Get(ctx, spicy.ID)
	require.NoError(t, err)
	assert.Equal(t, "#00FF00", got.Color)

	got.Name = "sweet"
	assert.True(t, types.IsConflict(tags.Update(ctx, got), types.ConstraintTagName))

	_, err = tags.Get(ctx, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = tags.GetByName(ctx, "umami")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTagTable_ColorValidation(t *testing.T) {
	tests := []struct {
		name  string
		color string
		valid bool
	}{
		{name: "empty", color: "", valid: true},
		{name: "mixed case hex", color: "#a1B2c3", valid: true},
		{name: "named color", color: "red", valid: false},
		{name: "five digits", color: "#12345", valid: false},
		{name: "seven digits", color: "#1234567", valid: false},
		{name: "non-hex digits", color: "#GGGGGG", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := setupBackend(t)
			_, err := tagsOf(t, b).Create(ctx, &types.Tag{Name: "x", Color: tt.color})
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var ve *types.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "color", ve.Field)
		})
	}
}

func TestTagTable_ColorCheckUnderDirectSQL(t *testing.T) {
	b := setupBackend(t)
	_, err := b.db.Exec("INSERT INTO tag (name, color) VALUES ('x', 'blue')")
	require.Error(t, err)

	var ve *types.ValidationError
	require.ErrorAs(t, translateError(err), &ve)
	assert.Equal(t, "tag", ve.Entity)
	assert.Equal(t, "color", ve.Field)
}

func TestTagTable_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tags := tagsOf(t, b)

	first, err := tags.GetOrCreate(ctx, &types.Tag{Name: "vegan"})
	require.NoError(t, err)
	second, err := tags.GetOrCreate(ctx, &types.Tag{Name: " vegan "})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, countRows(t, b, "tag", ""))
}

func TestTagTable_DeleteRemovesAssignments(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	tags := tagsOf(t, b)
	rt := recipesOf(t, b)

	tag, err := tags.Create(ctx, &types.Tag{Name: "summer"})
	require.NoError(t, err)
	r, err := rt.Create(ctx, &types.Recipe{Title: "Hiyashi chuka"})
	require.NoError(t, err)
	_, err = rt.AssignTag(ctx, r.ID, tag.ID)
	require.NoError(t, err)

	require.NoError(t, tags.Delete(ctx, tag.ID))
	assert.ErrorIs(t, tags.Delete(ctx, tag.ID), types.ErrNotFound)

	assert.Equal(t, 0, countRows(t, b, "recipe_tag", ""))
	_, err = rt.Get(ctx, r.ID, types.ReadOptions{})
	assert.NoError(t, err, "the recipe survives")
}
