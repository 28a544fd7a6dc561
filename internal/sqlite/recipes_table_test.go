// Tests for the recipe table: validation, CRUD, soft delete and cascades.
package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func TestRecipeTable_CreateValidatesRanges(t *testing.T) {
	tests := []struct {
		name    string
		recipe  types.Recipe
		wantErr bool
		field   string
	}{
		{name: "minimal", recipe: types.Recipe{Title: "Onigiri"}},
		{name: "lower bounds", recipe: types.Recipe{Title: "Tea", Servings: types.IntPtr(1), PrepTimeMinutes: types.IntPtr(0), CookTimeMinutes: types.IntPtr(0)}},
		{name: "upper bounds", recipe: types.Recipe{Title: "Stock", Servings: types.IntPtr(100), PrepTimeMinutes: types.IntPtr(1440), CookTimeMinutes: types.IntPtr(1440)}},
		{name: "title at limit", recipe: types.Recipe{Title: strings.Repeat("鍋", 200)}},
		{name: "servings zero", recipe: types.Recipe{Title: "X", Servings: types.IntPtr(0)}, wantErr: true, field: "servings"},
		{name: "servings over", recipe: types.Recipe{Title: "X", Servings: types.IntPtr(101)}, wantErr: true, field: "servings"},
		{name: "prep negative", recipe: types.Recipe{Title: "X", PrepTimeMinutes: types.IntPtr(-1)}, wantErr: true, field: "prep_time_minutes"},
		{name: "cook over a day", recipe: types.Recipe{Title: "X", CookTimeMinutes: types.IntPtr(1441)}, wantErr: true, field: "cook_time_minutes"},
		{name: "empty title", recipe: types.Recipe{Title: "   "}, wantErr: true, field: "title"},
		{name: "title too long", recipe: types.Recipe{Title: strings.Repeat("鍋", 201)}, wantErr: true, field: "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := setupBackend(t)
			rt := recipesOf(t, b)

			r := tt.recipe
			got, err := rt.Create(ctx, &r)
			if tt.wantErr {
				var ve *types.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "recipe", ve.Entity)
				assert.Equal(t, tt.field, ve.Field)
				assert.ErrorIs(t, err, types.ErrValidation)
				assert.Equal(t, 0, countRows(t, b, "recipe", ""), "nothing persisted")
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, got.ID)
			assert.Equal(t, 1, countRows(t, b, "recipe", "id = ?", got.ID))
		})
	}
}

func TestRecipeTable_CheckConstraintsHoldUnderDirectSQL(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		field string
	}{
		{name: "servings", sql: "INSERT INTO recipe (title, servings) VALUES ('X', 0)", field: "servings"},
		{name: "cook time", sql: "INSERT INTO recipe (title, cook_time_minutes) VALUES ('X', 2000)", field: "cook_time_minutes"},
		{name: "empty title", sql: "INSERT INTO recipe (title) VALUES ('')", field: "title"},
		{name: "missing title", sql: "INSERT INTO recipe (servings) VALUES (2)", field: "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			_, err := b.db.Exec(tt.sql)
			require.Error(t, err)

			var ve *types.ValidationError
			require.ErrorAs(t, translateError(err), &ve)
			assert.Equal(t, "recipe", ve.Entity)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRecipeTable_CRUD(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	rt := recipesOf(t, b)

	r, err := rt.Create(ctx, &types.Recipe{
		Title:           "  Curry  ",
		TitleOriginal:   "カレー",
		Servings:        types.IntPtr(4),
		PrepTimeMinutes: types.IntPtr(20),
		CookTimeMinutes: types.IntPtr(40),
	})
	require.NoError(t, err)
	assert.Equal(t, "Curry", r.Title)
	assert.Equal(t, types.DefaultLanguage, r.Language)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)

	got, err := rt.Get(ctx, r.ID, types.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, 60, got.TotalMinutes())

	got.Description = "Mild and sweet"
	got.Servings = nil
	require.NoError(t, rt.Update(ctx, got))
	assert.Equal(t, r.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(r.UpdatedAt) || got.UpdatedAt.Equal(r.UpdatedAt))

	again, err := rt.Get(ctx, r.ID, types.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Mild and sweet", again.Description)
	assert.Nil(t, again.Servings)

	require.NoError(t, rt.Delete(ctx, r.ID))
	_, err = rt.Get(ctx, r.ID, types.ReadOptions{IncludeDeleted: true})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, rt.Delete(ctx, r.ID), types.ErrNotFound)
	assert.ErrorIs(t, rt.Update(ctx, &types.Recipe{ID: r.ID, Title: "Gone"}), types.ErrNotFound)
}

func TestRecipeTable_SoftDelete(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	rt := recipesOf(t, b)

	r, err := rt.Create(ctx, &types.Recipe{Title: "Oden"})
	require.NoError(t, err)
	require.NoError(t, rt.AddStep(ctx, &types.RecipeStep{RecipeID: r.ID, StepNumber: 1, Description: "Simmer"}))

	require.NoError(t, rt.SoftDelete(ctx, r.ID))
	require.NoError(t, rt.SoftDelete(ctx, r.ID), "soft delete is idempotent")

	_, err = rt.Get(ctx, r.ID, types.ReadOptions{})
	assert.ErrorIs(t, err, types.ErrNotFound)
	hidden, err := rt.Get(ctx, r.ID, types.ReadOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.True(t, hidden.IsDeleted)
	assert.Equal(t, 1, countRows(t, b, "recipe_step", "recipe_id = ?", r.ID), "soft delete does not cascade")

	live, err := rt.Fetch(ctx, types.RecipeFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)
	trash, err := rt.Fetch(ctx, types.RecipeFilter{OnlyDeleted: true})
	require.NoError(t, err)
	require.Len(t, trash, 1)

	require.NoError(t, rt.Restore(ctx, r.ID))
	restored, err := rt.Get(ctx, r.ID, types.ReadOptions{})
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	assert.ErrorIs(t, rt.SoftDelete(ctx, 9999), types.ErrNotFound)
	assert.ErrorIs(t, rt.Restore(ctx, 9999), types.ErrNotFound)
}

func TestRecipeTable_Fetch(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	rt := recipesOf(t, b)

	curry, err := rt.Create(ctx, &types.Recipe{Title: "Chicken Curry"})
	require.NoError(t, err)
	_, err = rt.Create(ctx, &types.Recipe{Title: "Beef Stew", Language: "en"})
	require.NoError(t, err)
	katsu, err := rt.Create(ctx, &types.Recipe{Title: "Katsu Curry"})
	require.NoError(t, err)
	odd, err := rt.Create(ctx, &types.Recipe{Title: "100% rice_ball"})
	require.NoError(t, err)

	spicy, err := tagsOf(t, b).Create(ctx, &types.Tag{Name: "spicy"})
	require.NoError(t, err)
	_, err = rt.AssignTag(ctx, katsu.ID, spicy.ID)
	require.NoError(t, err)

	ids := func(recipes []*types.Recipe) []int64 {
		out := []int64{}
		for _, r := range recipes {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter types.RecipeFilter
		want   []int64
	}{
		{name: "all live", filter: types.RecipeFilter{}, want: []int64{curry.ID, curry.ID + 1, katsu.ID, odd.ID}},
		{name: "title contains is case insensitive", filter: types.RecipeFilter{TitleContains: "curry"}, want: []int64{curry.ID, katsu.ID}},
		{name: "wildcards match literally", filter: types.RecipeFilter{TitleContains: "0% rice_"}, want: []int64{odd.ID}},
		{name: "percent alone", filter: types.RecipeFilter{TitleContains: "%"}, want: []int64{odd.ID}},
		{name: "language", filter: types.RecipeFilter{Language: "en"}, want: []int64{curry.ID + 1}},
		{name: "tag", filter: types.RecipeFilter{TagID: spicy.ID}, want: []int64{katsu.ID}},
		{name: "limit", filter: types.RecipeFilter{Limit: 2}, want: []int64{curry.ID, curry.ID + 1}},
		{name: "offset", filter: types.RecipeFilter{Offset: 3}, want: []int64{odd.ID}},
		{name: "limit and offset", filter: types.RecipeFilter{Limit: 1, Offset: 2}, want: []int64{katsu.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rt.Fetch(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRecipeTable_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	rt := recipesOf(t, b)

	carrot, err := ingredientsOf(t, b).Create(ctx, &types.Ingredient{Name: "にんじん"})
	require.NoError(t, err)
	dinner, err := tagsOf(t, b).Create(ctx, &types.Tag{Name: "dinner"})
	require.NoError(t, err)
	quick, err := tagsOf(t, b).Create(ctx, &types.Tag{Name: "quick"})
	require.NoError(t, err)

	agg, err := rt.CreateAggregate(ctx, &types.RecipeAggregate{
		Recipe: types.Recipe{Title: "Curry"},
		Ingredients: []types.RecipeIngredient{
			{Name: "にんじん", IngredientID: &carrot.ID},
			{Name: "roux"},
			{Name: "water", Amount: types.Float64Ptr(600), Unit: "ml"},
		},
		Steps: []types.RecipeStep{
			{StepNumber: 1, Description: "Chop"},
			{StepNumber: 2, Description: "Boil"},
		},
		Tags:   []types.Tag{{ID: dinner.ID}, {ID: quick.ID}},
		Source: &types.RecipeSource{SourceType: types.SourceManual},
	})
	require.NoError(t, err)
	id := agg.Recipe.ID

	other, err := rt.Create(ctx, &types.Recipe{Title: "Other"})
	require.NoError(t, err)
	require.NoError(t, rt.AddStep(ctx, &types.RecipeStep{RecipeID: other.ID, StepNumber: 1, Description: "Keep"}))

	require.NoError(t, rt.Delete(ctx, id))

	for _, table := range []string{"recipe_ingredient", "recipe_step", "recipe_tag", "recipe_source"} {
		assert.Equal(t, 0, countRows(t, b, table, "recipe_id = ?", id), table)
	}
	assert.Equal(t, 1, countRows(t, b, "ingredient", "id = ?", carrot.ID), "ingredient master survives")
	assert.Equal(t, 2, countRows(t, b, "tag", ""), "tag masters survive")
	assert.Equal(t, 1, countRows(t, b, "recipe_step", "recipe_id = ?", other.ID), "other recipes untouched")
	assert.NoError(t, b.CheckIntegrity(ctx))
}
