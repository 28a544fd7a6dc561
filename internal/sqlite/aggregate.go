// This file implements whole-aggregate writes and reads: a recipe together
// with its ingredient lines, steps, tags and source in one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

// CreateAggregate inserts the recipe and everything it owns. Tags without an
// ID are looked up by name and created on first use. Either all rows are
// written or none. The stored aggregate is returned; agg keeps no IDs.
func (rt *recipesTable) CreateAggregate(ctx context.Context, agg *types.RecipeAggregate) (*types.RecipeAggregate, error) {
	agg.Recipe.Normalize()
	if err := agg.Validate(); err != nil {
		return nil, err
	}
	var out *types.RecipeAggregate
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		r, err := insertRecipe(ctx, tx, &agg.Recipe)
		if err != nil {
			return err
		}
		if err := rt.insertOwned(ctx, tx, r.ID, agg); err != nil {
			return err
		}
		out, err = readAggregate(ctx, tx, r.ID, types.ReadOptions{IncludeDeleted: true})
		return err
	})
	if err != nil {
		return nil, err
	}
	rt.backend.logger.Info("created recipe",
		zap.Int64("recipe_id", out.Recipe.ID),
		zap.Int("ingredients", len(out.Ingredients)),
		zap.Int("steps", len(out.Steps)),
		zap.Int("tags", len(out.Tags)))
	return out, nil
}

// ReplaceAggregate updates the recipe row and replaces every owned row with
// the ones in agg. Tag masters are never deleted.
func (rt *recipesTable) ReplaceAggregate(ctx context.Context, agg *types.RecipeAggregate) (*types.RecipeAggregate, error) {
	if agg.Recipe.ID == 0 {
		return nil, types.ErrNotFound
	}
	agg.Recipe.Normalize()
	if err := agg.Validate(); err != nil {
		return nil, err
	}
	var out *types.RecipeAggregate
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateRecipe(ctx, tx, &agg.Recipe); err != nil {
			return err
		}
		for _, table := range []string{
			types.TableRecipeIngredient,
			types.TableRecipeStep,
			types.TableRecipeTag,
			types.TableRecipeSource,
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE recipe_id = ?", agg.Recipe.ID); err != nil {
				return fmt.Errorf("clearing %s of recipe %d: %w", table, agg.Recipe.ID, err)
			}
		}
		if err := rt.insertOwned(ctx, tx, agg.Recipe.ID, agg); err != nil {
			return err
		}
		var err error
		out, err = readAggregate(ctx, tx, agg.Recipe.ID, types.ReadOptions{IncludeDeleted: true})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// insertOwned writes the owned rows of agg for recipeID. agg is not modified.
func (rt *recipesTable) insertOwned(ctx context.Context, tx *sql.Tx, recipeID int64, agg *types.RecipeAggregate) error {
	ordered := false
	for _, line := range agg.Ingredients {
		if line.OrderIndex != 0 {
			ordered = true
			break
		}
	}
	for i, line := range agg.Ingredients {
		line.RecipeID = recipeID
		if !ordered {
			line.OrderIndex = i
		}
		if _, err := insertRecipeIngredient(ctx, tx, &line); err != nil {
			return err
		}
	}

	for _, step := range agg.Steps {
		step.RecipeID = recipeID
		if _, err := insertRecipeStep(ctx, tx, &step); err != nil {
			return err
		}
	}

	for i := range agg.Tags {
		tagID := agg.Tags[i].ID
		if tagID == 0 {
			got, err := getOrCreateTag(ctx, tx, &agg.Tags[i], rt.backend.logger)
			if err != nil {
				return err
			}
			tagID = got.ID
		}
		if _, err := insertRecipeTag(ctx, tx, recipeID, tagID); err != nil {
			return err
		}
	}

	if agg.Source != nil {
		src := *agg.Source
		src.RecipeID = recipeID
		if _, err := insertRecipeSource(ctx, tx, &src); err != nil {
			return err
		}
	}
	return nil
}

// GetAggregate reads the recipe and its owned rows from one snapshot.
func (rt *recipesTable) GetAggregate(ctx context.Context, id int64, opts types.ReadOptions) (*types.RecipeAggregate, error) {
	var out *types.RecipeAggregate
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = readAggregate(ctx, tx, id, opts)
		return err
	})
	return out, err
}

func readAggregate(ctx context.Context, q queryer, id int64, opts types.ReadOptions) (*types.RecipeAggregate, error) {
	r, err := getRecipe(ctx, q, id, opts)
	if err != nil {
		return nil, err
	}
	agg := &types.RecipeAggregate{
		Recipe:      *r,
		Ingredients: []types.RecipeIngredient{},
		Steps:       []types.RecipeStep{},
		Tags:        []types.Tag{},
	}

	lines, err := listRecipeIngredients(ctx, q, id)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		agg.Ingredients = append(agg.Ingredients, *line)
	}

	steps, err := listRecipeSteps(ctx, q, id)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		agg.Steps = append(agg.Steps, *step)
	}

	tags, err := listRecipeTags(ctx, q, id)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		agg.Tags = append(agg.Tags, *tag)
	}

	src, err := getRecipeSource(ctx, q, id)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		agg.Source = src
	}
	return agg, nil
}
