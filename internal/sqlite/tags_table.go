// This file implements the tag master table accessor.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

var _ types.TagTable = (*tagsTable)(nil)

type tagsTable struct {
	backend *Backend
}

const tagColumns = "id, name, category, color, created_at"

func scanTag(row scanner) (*types.Tag, error) {
	var (
		tag       types.Tag
		category  sql.NullString
		createdAt string
	)
	if err := row.Scan(&tag.ID, &tag.Name, &category, &tag.Color, &createdAt); err != nil {
		return nil, err
	}
	tag.Category = category.String
	var err error
	if tag.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &tag, nil
}

// Create inserts a new tag. A duplicate name is a ConflictError on
// ConstraintTagName.
func (tt *tagsTable) Create(ctx context.Context, tag *types.Tag) (*types.Tag, error) {
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	var created *types.Tag
	err := tt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = insertTag(ctx, tx, tag)
		return err
	})
	if err != nil {
		return nil, err
	}
	*tag = *created
	return tag, nil
}

func insertTag(ctx context.Context, q queryer, tag *types.Tag) (*types.Tag, error) {
	now := nowUTC()
	res, err := q.ExecContext(ctx,
		"INSERT INTO tag (name, category, color, created_at) VALUES (?, ?, ?, ?)",
		tag.Name, nullString(tag.Category), tag.Color, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting tag %q: %w", tag.Name, translateError(err))
	}
	out := *tag
	if out.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading tag id: %w", err)
	}
	out.CreatedAt = now
	return &out, nil
}

// GetOrCreate returns the tag named tag.Name, inserting it on first use.
func (tt *tagsTable) GetOrCreate(ctx context.Context, tag *types.Tag) (*types.Tag, error) {
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	var got *types.Tag
	err := tt.backend.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		got, err = getOrCreateTag(ctx, tx, tag, tt.backend.logger)
		return err
	})
	return got, err
}

func getOrCreateTag(ctx context.Context, q queryer, tag *types.Tag, logger *zap.Logger) (*types.Tag, error) {
	existing, err := getTagByName(ctx, q, tag.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	created, err := insertTag(ctx, q, tag)
	if types.IsConflict(err, types.ConstraintTagName) {
		logger.Debug("tag created concurrently", zap.String("name", tag.Name))
		return getTagByName(ctx, q, tag.Name)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (tt *tagsTable) Get(ctx context.Context, id int64) (*types.Tag, error) {
	var tag *types.Tag
	err := tt.backend.withDB(func(db *sql.DB) error {
		var err error
		tag, err = getTag(ctx, db, id)
		return err
	})
	return tag, err
}

func getTag(ctx context.Context, q queryer, id int64) (*types.Tag, error) {
	tag, err := scanTag(q.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tag WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %d: %w", id, err)
	}
	return tag, nil
}

func (tt *tagsTable) GetByName(ctx context.Context, name string) (*types.Tag, error) {
	var tag *types.Tag
	err := tt.backend.withDB(func(db *sql.DB) error {
		var err error
		tag, err = getTagByName(ctx, db, name)
		return err
	})
	return tag, err
}

func getTagByName(ctx context.Context, q queryer, name string) (*types.Tag, error) {
	tag, err := scanTag(q.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tag WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %q: %w", name, err)
	}
	return tag, nil
}

func (tt *tagsTable) Update(ctx context.Context, tag *types.Tag) error {
	if tag.ID == 0 {
		return types.ErrNotFound
	}
	if err := tag.Validate(); err != nil {
		return err
	}
	return tt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE tag SET name = ?, category = ?, color = ? WHERE id = ?",
			tag.Name, nullString(tag.Category), tag.Color, tag.ID,
		)
		if err != nil {
			return fmt.Errorf("updating tag %d: %w", tag.ID, translateError(err))
		}
		return requireAffected(res, types.TableTag, tag.ID)
	})
}

// Delete removes the tag; ON DELETE CASCADE removes its recipe_tag rows.
func (tt *tagsTable) Delete(ctx context.Context, id int64) error {
	err := tt.backend.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM tag WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting tag %d: %w", id, translateError(err))
		}
		return requireAffected(res, types.TableTag, id)
	})
	if err != nil {
		return err
	}
	tt.backend.logger.Info("deleted tag", zap.Int64("tag_id", id))
	return nil
}

func (tt *tagsTable) Fetch(ctx context.Context, category string) ([]*types.Tag, error) {
	query := "SELECT " + tagColumns + " FROM tag"
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY name"

	tags := []*types.Tag{}
	err := tt.backend.withDB(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying tags: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			tag, err := scanTag(rows)
			if err != nil {
				return fmt.Errorf("scanning tag: %w", err)
			}
			tags = append(tags, tag)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}
