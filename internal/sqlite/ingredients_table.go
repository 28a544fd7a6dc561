// This file implements the ingredient master table accessor.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

var _ types.IngredientTable = (*ingredientsTable)(nil)

type ingredientsTable struct {
	backend *Backend
}

const ingredientColumns = "id, name, name_normalized, category, created_at"

func scanIngredient(row scanner) (*types.Ingredient, error) {
	var (
		ing       types.Ingredient
		category  sql.NullString
		createdAt string
	)
	if err := row.Scan(&ing.ID, &ing.Name, &ing.NameNormalized, &category, &createdAt); err != nil {
		return nil, err
	}
	ing.Category = category.String
	var err error
	if ing.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &ing, nil
}

// Create inserts a new master. A name that normalizes to an existing one is a
// ConflictError on ConstraintIngredientName.
func (it *ingredientsTable) Create(ctx context.Context, ing *types.Ingredient) (*types.Ingredient, error) {
	if err := ing.Validate(); err != nil {
		return nil, err
	}
	var created *types.Ingredient
	err := it.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = insertIngredient(ctx, tx, ing)
		return err
	})
	if err != nil {
		return nil, err
	}
	*ing = *created
	return ing, nil
}

func insertIngredient(ctx context.Context, q queryer, ing *types.Ingredient) (*types.Ingredient, error) {
	now := nowUTC()
	res, err := q.ExecContext(ctx,
		"INSERT INTO ingredient (name, name_normalized, category, created_at) VALUES (?, ?, ?, ?)",
		ing.Name, ing.NameNormalized, nullString(ing.Category), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting ingredient %q: %w", ing.Name, translateError(err))
	}
	out := *ing
	if out.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading ingredient id: %w", err)
	}
	out.CreatedAt = now
	return &out, nil
}

// GetOrCreate returns the master whose normalized name matches ing, inserting
// ing when there is none. If a concurrent writer wins the insert, the unique
// index rejects ours and the winner's row is returned.
func (it *ingredientsTable) GetOrCreate(ctx context.Context, ing *types.Ingredient) (*types.Ingredient, error) {
	if err := ing.Validate(); err != nil {
		return nil, err
	}
	var got *types.Ingredient
	err := it.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		got, err = getOrCreateIngredient(ctx, tx, ing, it.backend.logger)
		return err
	})
	return got, err
}

func getOrCreateIngredient(ctx context.Context, q queryer, ing *types.Ingredient, logger *zap.Logger) (*types.Ingredient, error) {
	existing, err := getIngredientByNormalized(ctx, q, ing.NameNormalized)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	created, err := insertIngredient(ctx, q, ing)
	if types.IsConflict(err, types.ConstraintIngredientName) {
		logger.Debug("ingredient created concurrently", zap.String("name_normalized", ing.NameNormalized))
		return getIngredientByNormalized(ctx, q, ing.NameNormalized)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (it *ingredientsTable) Get(ctx context.Context, id int64) (*types.Ingredient, error) {
	var ing *types.Ingredient
	err := it.backend.withDB(func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT "+ingredientColumns+" FROM ingredient WHERE id = ?", id)
		var err error
		ing, err = scanIngredient(row)
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("getting ingredient %d: %w", id, err)
		}
		return nil
	})
	return ing, err
}

// GetByName normalizes name before the lookup, so any spelling that folds to
// the same form finds the master.
func (it *ingredientsTable) GetByName(ctx context.Context, name string) (*types.Ingredient, error) {
	normalized := types.NormalizeName(name)
	if normalized == "" {
		return nil, &types.ValidationError{Entity: types.TableIngredient, Field: "name", Reason: "required"}
	}
	var ing *types.Ingredient
	err := it.backend.withDB(func(db *sql.DB) error {
		var err error
		ing, err = getIngredientByNormalized(ctx, db, normalized)
		return err
	})
	return ing, err
}

func getIngredientByNormalized(ctx context.Context, q queryer, normalized string) (*types.Ingredient, error) {
	row := q.QueryRowContext(ctx, "SELECT "+ingredientColumns+" FROM ingredient WHERE name_normalized = ?", normalized)
	ing, err := scanIngredient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting ingredient %q: %w", normalized, err)
	}
	return ing, nil
}

func (it *ingredientsTable) Update(ctx context.Context, ing *types.Ingredient) error {
	if ing.ID == 0 {
		return types.ErrNotFound
	}
	if err := ing.Validate(); err != nil {
		return err
	}
	return it.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE ingredient SET name = ?, name_normalized = ?, category = ? WHERE id = ?",
			ing.Name, ing.NameNormalized, nullString(ing.Category), ing.ID,
		)
		if err != nil {
			return fmt.Errorf("updating ingredient %d: %w", ing.ID, translateError(err))
		}
		return requireAffected(res, types.TableIngredient, ing.ID)
	})
}

// Delete removes the master. ON DELETE SET NULL detaches the recipe lines
// that referenced it.
func (it *ingredientsTable) Delete(ctx context.Context, id int64) error {
	var detached int64
	err := it.backend.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM recipe_ingredient WHERE ingredient_id = ?", id,
		).Scan(&detached)
		if err != nil {
			return fmt.Errorf("counting lines of ingredient %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM ingredient WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting ingredient %d: %w", id, translateError(err))
		}
		return requireAffected(res, types.TableIngredient, id)
	})
	if err != nil {
		return err
	}
	it.backend.logger.Info("deleted ingredient",
		zap.Int64("ingredient_id", id),
		zap.Int64("lines_detached", detached))
	return nil
}

func (it *ingredientsTable) Fetch(ctx context.Context, category string) ([]*types.Ingredient, error) {
	query := "SELECT " + ingredientColumns + " FROM ingredient"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY name_normalized"

	ingredients := []*types.Ingredient{}
	err := it.backend.withDB(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying ingredients: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			ing, err := scanIngredient(rows)
			if err != nil {
				return fmt.Errorf("scanning ingredient: %w", err)
			}
			ingredients = append(ingredients, ing)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ingredients, nil
}
