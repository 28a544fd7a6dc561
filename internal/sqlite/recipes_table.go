// This file implements the recipe table accessor: the recipe row itself and
// the soft-delete lifecycle. Owned rows live in recipe_children.go and whole
// aggregates in aggregate.go.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

var _ types.RecipeTable = (*recipesTable)(nil)

type recipesTable struct {
	backend *Backend
}

const recipeColumns = `id, title, title_original, description, servings, prep_time_minutes,
	cook_time_minutes, image_path, language, created_at, updated_at, is_deleted`

func scanRecipe(row scanner) (*types.Recipe, error) {
	var (
		r                                     types.Recipe
		titleOriginal, description, imagePath sql.NullString
		servings, prepMinutes, cookMinutes    sql.NullInt64
		createdAt, updatedAt                  string
	)
	err := row.Scan(&r.ID, &r.Title, &titleOriginal, &description, &servings, &prepMinutes,
		&cookMinutes, &imagePath, &r.Language, &createdAt, &updatedAt, &r.IsDeleted)
	if err != nil {
		return nil, err
	}
	r.TitleOriginal = titleOriginal.String
	r.Description = description.String
	r.ImagePath = imagePath.String
	r.Servings = intPtr(servings)
	r.PrepTimeMinutes = intPtr(prepMinutes)
	r.CookTimeMinutes = intPtr(cookMinutes)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create validates r and inserts it. The ID and timestamps are set on r once
// the insert has committed.
func (rt *recipesTable) Create(ctx context.Context, r *types.Recipe) (*types.Recipe, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var created *types.Recipe
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = insertRecipe(ctx, tx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	*r = *created
	return r, nil
}

// insertRecipe inserts r and returns the stored row. r is not modified.
func insertRecipe(ctx context.Context, tx *sql.Tx, r *types.Recipe) (*types.Recipe, error) {
	now := nowUTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO recipe (title, title_original, description, servings, prep_time_minutes,
			cook_time_minutes, image_path, language, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		r.Title, nullString(r.TitleOriginal), nullString(r.Description), nullInt(r.Servings),
		nullInt(r.PrepTimeMinutes), nullInt(r.CookTimeMinutes), nullString(r.ImagePath),
		r.Language, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting recipe: %w", translateError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading recipe id: %w", err)
	}
	out := *r
	out.ID = id
	out.CreatedAt = now
	out.UpdatedAt = now
	out.IsDeleted = false
	return &out, nil
}

// Get retrieves a recipe by id.
func (rt *recipesTable) Get(ctx context.Context, id int64, opts types.ReadOptions) (*types.Recipe, error) {
	var r *types.Recipe
	err := rt.backend.withDB(func(db *sql.DB) error {
		var err error
		r, err = getRecipe(ctx, db, id, opts)
		return err
	})
	return r, err
}

func getRecipe(ctx context.Context, q queryer, id int64, opts types.ReadOptions) (*types.Recipe, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+recipeColumns+" FROM recipe WHERE id = ? AND (? OR is_deleted = 0)",
		id, opts.IncludeDeleted,
	)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting recipe %d: %w", id, err)
	}
	return r, nil
}

// Fetch lists recipes matching filter ordered by id.
func (rt *recipesTable) Fetch(ctx context.Context, filter types.RecipeFilter) ([]*types.Recipe, error) {
	query, args := buildRecipeQuery(filter)

	var recipes []*types.Recipe
	err := rt.backend.withDB(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying recipes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanRecipe(rows)
			if err != nil {
				return fmt.Errorf("scanning recipe: %w", err)
			}
			recipes = append(recipes, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if recipes == nil {
		recipes = []*types.Recipe{}
	}
	return recipes, nil
}

// buildRecipeQuery constructs the SELECT for a RecipeFilter.
func buildRecipeQuery(filter types.RecipeFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	switch {
	case filter.OnlyDeleted:
		where = append(where, "is_deleted = 1")
	case !filter.IncludeDeleted:
		where = append(where, "is_deleted = 0")
	}
	if filter.TitleContains != "" {
		where = append(where, `(title LIKE ? ESCAPE '\' OR title_original LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(filter.TitleContains) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Language != "" {
		where = append(where, "language = ?")
		args = append(args, filter.Language)
	}
	if filter.TagID != 0 {
		where = append(where, "id IN (SELECT recipe_id FROM recipe_tag WHERE tag_id = ?)")
		args = append(args, filter.TagID)
	}

	var b strings.Builder
	b.WriteString("SELECT " + recipeColumns + " FROM recipe")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY id")
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, filter.Offset)
	}
	return b.String(), args
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Update writes every column of r and refreshes UpdatedAt. r is reloaded so
// CreatedAt and IsDeleted reflect the stored row.
func (rt *recipesTable) Update(ctx context.Context, r *types.Recipe) error {
	if r.ID == 0 {
		return types.ErrNotFound
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateRecipe(ctx, tx, r); err != nil {
			return err
		}
		got, err := getRecipe(ctx, tx, r.ID, types.ReadOptions{IncludeDeleted: true})
		if err != nil {
			return err
		}
		*r = *got
		return nil
	})
}

func updateRecipe(ctx context.Context, tx *sql.Tx, r *types.Recipe) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE recipe SET title = ?, title_original = ?, description = ?, servings = ?,
			prep_time_minutes = ?, cook_time_minutes = ?, image_path = ?, language = ?, updated_at = ?
		WHERE id = ?`,
		r.Title, nullString(r.TitleOriginal), nullString(r.Description), nullInt(r.Servings),
		nullInt(r.PrepTimeMinutes), nullInt(r.CookTimeMinutes), nullString(r.ImagePath),
		r.Language, formatTime(nowUTC()), r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating recipe %d: %w", r.ID, translateError(err))
	}
	return requireAffected(res, "recipe", r.ID)
}

// Delete removes the recipe. Foreign key cascades remove its ingredient
// lines, steps, tag assignments and source in the same statement.
func (rt *recipesTable) Delete(ctx context.Context, id int64) error {
	err := rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM recipe WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting recipe %d: %w", id, translateError(err))
		}
		return requireAffected(res, "recipe", id)
	})
	if err != nil {
		return err
	}
	rt.backend.logger.Info("deleted recipe", zap.Int64("recipe_id", id))
	return nil
}

// SoftDelete sets is_deleted. Deleting an already deleted recipe succeeds.
func (rt *recipesTable) SoftDelete(ctx context.Context, id int64) error {
	return rt.setDeleted(ctx, id, true)
}

// Restore clears is_deleted. Restoring a live recipe succeeds.
func (rt *recipesTable) Restore(ctx context.Context, id int64) error {
	return rt.setDeleted(ctx, id, false)
}

func (rt *recipesTable) setDeleted(ctx context.Context, id int64, deleted bool) error {
	return rt.backend.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRecipe(ctx, tx, "recipe", id); err != nil {
			if errors.Is(err, types.ErrReference) {
				return types.ErrNotFound
			}
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE recipe SET is_deleted = ?, updated_at = ? WHERE id = ? AND is_deleted != ?",
			deleted, formatTime(nowUTC()), id, deleted,
		)
		if err != nil {
			return fmt.Errorf("updating recipe %d: %w", id, err)
		}
		return nil
	})
}

// requireAffected maps an UPDATE or DELETE that touched nothing to
// ErrNotFound.
func requireAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected for %s %d: %w", entity, id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// requireRecipe returns a ReferenceError when no recipe has id. table names
// the table whose recipe_id is being written.
func requireRecipe(ctx context.Context, q queryer, table string, id int64) error {
	return requireRow(ctx, q, "recipe", table, "recipe_id", id)
}

// requireRow checks that parent has a row with id.
func requireRow(ctx context.Context, q queryer, parent, table, field string, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+parent+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &types.ReferenceError{Table: table, Field: field, ID: id}
	}
	if err != nil {
		return fmt.Errorf("checking %s %d: %w", parent, id, err)
	}
	return nil
}
