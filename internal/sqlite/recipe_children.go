// This file implements the rows a recipe owns: ingredient lines, steps, tag
// assignments and the provenance row. Every write checks its parents inside
// the transaction so a missing recipe, master or tag is a ReferenceError.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

// Ingredient lines.

const recipeIngredientColumns = "id, recipe_id, ingredient_id, name, amount, unit, note, order_index"

func scanRecipeIngredient(row scanner) (*types.RecipeIngredient, error) {
	var (
		line         types.RecipeIngredient
		ingredientID sql.NullInt64
		amount       sql.NullFloat64
		unit, note   sql.NullString
	)
	err := row.Scan(&line.ID, &line.RecipeID, &ingredientID, &line.Name, &amount, &unit, &note, &line.OrderIndex)
	if err != nil {
		return nil, err
	}
	line.IngredientID = int64Ptr(ingredientID)
	line.Amount = floatPtr(amount)
	line.Unit = unit.String
	line.Note = note.String
	return &line, nil
}

func (rt *recipesTable) AddIngredient(ctx context.Context, line *types.RecipeIngredient) error {
	if err := line.Validate(); err != nil {
		return err
	}
	var id int64
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRecipeIngredient(ctx, tx, line)
		return err
	})
	if err != nil {
		return err
	}
	line.ID = id
	return nil
}

func checkLineParents(ctx context.Context, q queryer, line *types.RecipeIngredient) error {
	if err := requireRecipe(ctx, q, types.TableRecipeIngredient, line.RecipeID); err != nil {
		return err
	}
	if line.IngredientID != nil {
		return requireRow(ctx, q, types.TableIngredient, types.TableRecipeIngredient, "ingredient_id", *line.IngredientID)
	}
	return nil
}

// insertRecipeIngredient inserts line and returns the new row id.
func insertRecipeIngredient(ctx context.Context, tx *sql.Tx, line *types.RecipeIngredient) (int64, error) {
	if err := checkLineParents(ctx, tx, line); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO recipe_ingredient (recipe_id, ingredient_id, name, amount, unit, note, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		line.RecipeID, nullInt64(line.IngredientID), line.Name, nullFloat(line.Amount),
		nullString(line.Unit), nullString(line.Note), line.OrderIndex,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting ingredient line: %w", translateError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading ingredient line id: %w", err)
	}
	return id, nil
}

func (rt *recipesTable) UpdateIngredient(ctx context.Context, line *types.RecipeIngredient) error {
	if line.ID == 0 {
		return types.ErrNotFound
	}
	if err := line.Validate(); err != nil {
		return err
	}
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkLineParents(ctx, tx, line); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE recipe_ingredient SET recipe_id = ?, ingredient_id = ?, name = ?, amount = ?,
				unit = ?, note = ?, order_index = ?
			WHERE id = ?`,
			line.RecipeID, nullInt64(line.IngredientID), line.Name, nullFloat(line.Amount),
			nullString(line.Unit), nullString(line.Note), line.OrderIndex, line.ID,
		)
		if err != nil {
			return fmt.Errorf("updating ingredient line %d: %w", line.ID, translateError(err))
		}
		return requireAffected(res, types.TableRecipeIngredient, line.ID)
	})
}

func (rt *recipesTable) RemoveIngredient(ctx context.Context, lineID int64) error {
	return rt.deleteByID(ctx, types.TableRecipeIngredient, lineID)
}

func (rt *recipesTable) Ingredients(ctx context.Context, recipeID int64) ([]*types.RecipeIngredient, error) {
	var lines []*types.RecipeIngredient
	err := rt.backend.withDB(func(db *sql.DB) error {
		var err error
		lines, err = listRecipeIngredients(ctx, db, recipeID)
		return err
	})
	return lines, err
}

func listRecipeIngredients(ctx context.Context, q queryer, recipeID int64) ([]*types.RecipeIngredient, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+recipeIngredientColumns+" FROM recipe_ingredient WHERE recipe_id = ? ORDER BY order_index, id",
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ingredient lines: %w", err)
	}
	defer rows.Close()

	lines := []*types.RecipeIngredient{}
	for rows.Next() {
		line, err := scanRecipeIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ingredient line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Steps.

func (rt *recipesTable) AddStep(ctx context.Context, step *types.RecipeStep) error {
	if err := step.Validate(); err != nil {
		return err
	}
	var id int64
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRecipeStep(ctx, tx, step)
		return err
	})
	if err != nil {
		return err
	}
	step.ID = id
	return nil
}

func insertRecipeStep(ctx context.Context, tx *sql.Tx, step *types.RecipeStep) (int64, error) {
	if err := requireRecipe(ctx, tx, types.TableRecipeStep, step.RecipeID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO recipe_step (recipe_id, step_number, description, image_path) VALUES (?, ?, ?, ?)",
		step.RecipeID, step.StepNumber, step.Description, nullString(step.ImagePath),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting step: %w", translateError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading step id: %w", err)
	}
	return id, nil
}

func (rt *recipesTable) UpdateStep(ctx context.Context, step *types.RecipeStep) error {
	if step.ID == 0 {
		return types.ErrNotFound
	}
	if err := step.Validate(); err != nil {
		return err
	}
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRecipe(ctx, tx, types.TableRecipeStep, step.RecipeID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE recipe_step SET recipe_id = ?, step_number = ?, description = ?, image_path = ? WHERE id = ?",
			step.RecipeID, step.StepNumber, step.Description, nullString(step.ImagePath), step.ID,
		)
		if err != nil {
			return fmt.Errorf("updating step %d: %w", step.ID, translateError(err))
		}
		return requireAffected(res, types.TableRecipeStep, step.ID)
	})
}

func (rt *recipesTable) RemoveStep(ctx context.Context, stepID int64) error {
	return rt.deleteByID(ctx, types.TableRecipeStep, stepID)
}

func (rt *recipesTable) Steps(ctx context.Context, recipeID int64) ([]*types.RecipeStep, error) {
	var steps []*types.RecipeStep
	err := rt.backend.withDB(func(db *sql.DB) error {
		var err error
		steps, err = listRecipeSteps(ctx, db, recipeID)
		return err
	})
	return steps, err
}

func listRecipeSteps(ctx context.Context, q queryer, recipeID int64) ([]*types.RecipeStep, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, recipe_id, step_number, description, image_path FROM recipe_step WHERE recipe_id = ? ORDER BY step_number",
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	steps := []*types.RecipeStep{}
	for rows.Next() {
		var (
			step      types.RecipeStep
			imagePath sql.NullString
		)
		if err := rows.Scan(&step.ID, &step.RecipeID, &step.StepNumber, &step.Description, &imagePath); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		step.ImagePath = imagePath.String
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

// Tag assignments.

func (rt *recipesTable) AssignTag(ctx context.Context, recipeID, tagID int64) (*types.RecipeTag, error) {
	rtag := &types.RecipeTag{RecipeID: recipeID, TagID: tagID}
	var id int64
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRecipeTag(ctx, tx, recipeID, tagID)
		return err
	})
	if err != nil {
		return nil, err
	}
	rtag.ID = id
	return rtag, nil
}

func insertRecipeTag(ctx context.Context, tx *sql.Tx, recipeID, tagID int64) (int64, error) {
	if err := requireRecipe(ctx, tx, types.TableRecipeTag, recipeID); err != nil {
		return 0, err
	}
	if err := requireRow(ctx, tx, types.TableTag, types.TableRecipeTag, "tag_id", tagID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO recipe_tag (recipe_id, tag_id) VALUES (?, ?)",
		recipeID, tagID,
	)
	if err != nil {
		return 0, fmt.Errorf("assigning tag: %w", translateError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading recipe_tag id: %w", err)
	}
	return id, nil
}

func (rt *recipesTable) UnassignTag(ctx context.Context, recipeID, tagID int64) error {
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM recipe_tag WHERE recipe_id = ? AND tag_id = ?",
			recipeID, tagID,
		)
		if err != nil {
			return fmt.Errorf("unassigning tag: %w", err)
		}
		return requireAffected(res, types.TableRecipeTag, tagID)
	})
}

func (rt *recipesTable) Tags(ctx context.Context, recipeID int64) ([]*types.Tag, error) {
	var tags []*types.Tag
	err := rt.backend.withDB(func(db *sql.DB) error {
		var err error
		tags, err = listRecipeTags(ctx, db, recipeID)
		return err
	})
	return tags, err
}

func listRecipeTags(ctx context.Context, q queryer, recipeID int64) ([]*types.Tag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.name, t.category, t.color, t.created_at
		FROM tag t JOIN recipe_tag rt ON rt.tag_id = t.id
		WHERE rt.recipe_id = ?
		ORDER BY t.name`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recipe tags: %w", err)
	}
	defer rows.Close()

	tags := []*types.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Source.

func (rt *recipesTable) SetSource(ctx context.Context, src *types.RecipeSource) error {
	if err := src.Validate(); err != nil {
		return err
	}
	var id int64
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRecipeSource(ctx, tx, src)
		return err
	})
	if err != nil {
		return err
	}
	src.ID = id
	return nil
}

func insertRecipeSource(ctx context.Context, tx *sql.Tx, src *types.RecipeSource) (int64, error) {
	if err := requireRecipe(ctx, tx, types.TableRecipeSource, src.RecipeID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO recipe_source (recipe_id, source_type, source_url, source_site, scraped_at)
		VALUES (?, ?, ?, ?, ?)`,
		src.RecipeID, string(src.SourceType), nullString(src.SourceURL), nullString(src.SourceSite),
		nullTime(src.ScrapedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting source: %w", translateError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading source id: %w", err)
	}
	return id, nil
}

// UpdateSource rewrites the provenance row of src.RecipeID.
func (rt *recipesTable) UpdateSource(ctx context.Context, src *types.RecipeSource) error {
	if err := src.Validate(); err != nil {
		return err
	}
	var id int64
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE recipe_source SET source_type = ?, source_url = ?, source_site = ?, scraped_at = ?
			WHERE recipe_id = ?`,
			string(src.SourceType), nullString(src.SourceURL), nullString(src.SourceSite),
			nullTime(src.ScrapedAt), src.RecipeID,
		)
		if err != nil {
			return fmt.Errorf("updating source of recipe %d: %w", src.RecipeID, translateError(err))
		}
		if err := requireAffected(res, types.TableRecipeSource, src.RecipeID); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT id FROM recipe_source WHERE recipe_id = ?", src.RecipeID).Scan(&id)
	})
	if err != nil {
		return err
	}
	src.ID = id
	return nil
}

func (rt *recipesTable) RemoveSource(ctx context.Context, recipeID int64) error {
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM recipe_source WHERE recipe_id = ?", recipeID)
		if err != nil {
			return fmt.Errorf("removing source of recipe %d: %w", recipeID, err)
		}
		return requireAffected(res, types.TableRecipeSource, recipeID)
	})
}

// Source returns the provenance row of a recipe, ErrNotFound when it has none.
func (rt *recipesTable) Source(ctx context.Context, recipeID int64) (*types.RecipeSource, error) {
	var src *types.RecipeSource
	err := rt.backend.withDB(func(db *sql.DB) error {
		var err error
		src, err = getRecipeSource(ctx, db, recipeID)
		return err
	})
	return src, err
}

func getRecipeSource(ctx context.Context, q queryer, recipeID int64) (*types.RecipeSource, error) {
	var (
		src                  types.RecipeSource
		sourceType           string
		url, site, scrapedAt sql.NullString
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, recipe_id, source_type, source_url, source_site, scraped_at FROM recipe_source WHERE recipe_id = ?",
		recipeID,
	).Scan(&src.ID, &src.RecipeID, &sourceType, &url, &site, &scrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting source of recipe %d: %w", recipeID, err)
	}
	src.SourceType = types.SourceType(sourceType)
	src.SourceURL = url.String
	src.SourceSite = site.String
	if src.ScrapedAt, err = parseNullTime(scrapedAt); err != nil {
		return nil, err
	}
	return &src, nil
}

// deleteByID removes one owned row by primary key.
func (rt *recipesTable) deleteByID(ctx context.Context, table string, id int64) error {
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting %s %d: %w", table, id, err)
		}
		return requireAffected(res, table, id)
	})
}
