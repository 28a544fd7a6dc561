package types

import (
	"context"
	"errors"
	"time"
)

// Cookbook defines the interface for backend-agnostic recipe storage.
// Callers attach to a backend, obtain tables, and detach when done.
type Cookbook interface {
	// Attach opens the backend described by config. Creates DataDir if it
	// does not exist and, unless config.SkipMigrate is set, upgrades the
	// schema to head. Returns ErrAlreadyAttached if already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, table accessors return ErrCookbookDetached.
	Detach() error

	Recipes() (RecipeTable, error)
	Ingredients() (IngredientTable, error)
	Tags() (TagTable, error)
	Translations() (TranslationTable, error)
}

// Cookbook lifecycle errors.
var (
	ErrCookbookDetached = errors.New("cookbook is detached")
	ErrAlreadyAttached  = errors.New("cookbook is already attached")
)

// BackupInfo describes a backup file written by a backend.
type BackupInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// RecipeTable manages recipes and the rows they own. Every method runs in a
// single transaction.
type RecipeTable interface {
	// Create validates r, assigns ID, timestamps and the language default,
	// and inserts it. r is updated in place and returned.
	Create(ctx context.Context, r *Recipe) (*Recipe, error)

	// Get returns the recipe with id. Soft-deleted recipes are ErrNotFound
	// unless opts.IncludeDeleted is set.
	Get(ctx context.Context, id int64, opts ReadOptions) (*Recipe, error)

	// Fetch returns recipes matching filter ordered by id.
	Fetch(ctx context.Context, filter RecipeFilter) ([]*Recipe, error)

	// Update writes every column of r and refreshes UpdatedAt.
	Update(ctx context.Context, r *Recipe) error

	// Delete removes the recipe and every ingredient line, step, tag
	// assignment and source it owns. Ingredient and tag masters survive.
	Delete(ctx context.Context, id int64) error

	// SoftDelete hides the recipe from default reads without cascading.
	SoftDelete(ctx context.Context, id int64) error

	// Restore clears the soft-delete flag.
	Restore(ctx context.Context, id int64) error

	AddIngredient(ctx context.Context, line *RecipeIngredient) error
	UpdateIngredient(ctx context.Context, line *RecipeIngredient) error
	RemoveIngredient(ctx context.Context, lineID int64) error
	// Ingredients returns the lines of a recipe ordered by OrderIndex.
	Ingredients(ctx context.Context, recipeID int64) ([]*RecipeIngredient, error)

	AddStep(ctx context.Context, step *RecipeStep) error
	UpdateStep(ctx context.Context, step *RecipeStep) error
	RemoveStep(ctx context.Context, stepID int64) error
	// Steps returns the steps of a recipe ordered by StepNumber.
	Steps(ctx context.Context, recipeID int64) ([]*RecipeStep, error)

	AssignTag(ctx context.Context, recipeID, tagID int64) (*RecipeTag, error)
	UnassignTag(ctx context.Context, recipeID, tagID int64) error
	// Tags returns the tags assigned to a recipe ordered by name.
	Tags(ctx context.Context, recipeID int64) ([]*Tag, error)

	// SetSource inserts the provenance row. A recipe that already has one
	// yields a ConflictError on ConstraintRecipeSource.
	SetSource(ctx context.Context, src *RecipeSource) error
	UpdateSource(ctx context.Context, src *RecipeSource) error
	RemoveSource(ctx context.Context, recipeID int64) error
	Source(ctx context.Context, recipeID int64) (*RecipeSource, error)

	CreateAggregate(ctx context.Context, agg *RecipeAggregate) (*RecipeAggregate, error)
	// ReplaceAggregate updates the recipe and replaces all of its owned rows.
	ReplaceAggregate(ctx context.Context, agg *RecipeAggregate) (*RecipeAggregate, error)
	GetAggregate(ctx context.Context, id int64, opts ReadOptions) (*RecipeAggregate, error)
}

// IngredientTable manages ingredient master rows.
type IngredientTable interface {
	// Create inserts a new master. A duplicate normalized name yields a
	// ConflictError on ConstraintIngredientName.
	Create(ctx context.Context, ing *Ingredient) (*Ingredient, error)

	// GetOrCreate returns the master with the same normalized name, creating
	// it on first use. Losing a creation race is resolved by re-reading.
	GetOrCreate(ctx context.Context, ing *Ingredient) (*Ingredient, error)

	Get(ctx context.Context, id int64) (*Ingredient, error)
	GetByName(ctx context.Context, name string) (*Ingredient, error)
	Update(ctx context.Context, ing *Ingredient) error

	// Delete removes the master and nulls ingredient_id on every recipe
	// line that referenced it; the lines keep their free-text name.
	Delete(ctx context.Context, id int64) error

	// Fetch lists masters ordered by normalized name, optionally by category.
	Fetch(ctx context.Context, category string) ([]*Ingredient, error)
}

// TagTable manages tag master rows.
type TagTable interface {
	Create(ctx context.Context, tag *Tag) (*Tag, error)
	GetOrCreate(ctx context.Context, tag *Tag) (*Tag, error)
	Get(ctx context.Context, id int64) (*Tag, error)
	GetByName(ctx context.Context, name string) (*Tag, error)
	Update(ctx context.Context, tag *Tag) error

	// Delete removes the tag and every recipe_tag row pointing at it.
	Delete(ctx context.Context, id int64) error

	// Fetch lists tags ordered by name, optionally by category.
	Fetch(ctx context.Context, category string) ([]*Tag, error)
}

// TranslationTable is the translation memo cache.
type TranslationTable interface {
	// Lookup returns the live entry for key. A missing or expired entry is
	// ErrNotFound: the caller translates and calls Put.
	Lookup(ctx context.Context, key TranslationKey) (*Translation, error)

	// Put caches t. If an unexpired entry with the same key already exists,
	// including one written by a concurrent caller, that entry is returned
	// unchanged; an expired entry is overwritten.
	Put(ctx context.Context, t *Translation) (*Translation, error)

	// Prune deletes entries expired at now and returns how many were removed.
	Prune(ctx context.Context, now time.Time) (int64, error)
}
