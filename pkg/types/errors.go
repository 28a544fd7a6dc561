package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Structured errors below unwrap to exactly one of these, so
// callers can branch with errors.Is without knowing the concrete type.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("unique constraint conflict")
	ErrReference  = errors.New("referenced row does not exist")
	ErrNotFound   = errors.New("entity not found")
	ErrIntegrity  = errors.New("integrity check failed")
	ErrMigration  = errors.New("migration failed")
)

// Named unique constraints. ConflictError.Constraint carries one of these.
const (
	ConstraintIngredientName = "ingredient_name_normalized"
	ConstraintTagName        = "tag_name"
	ConstraintStepNumber     = "recipe_step_recipe_step_number"
	ConstraintRecipeTag      = "recipe_tag_recipe_tag"
	ConstraintRecipeSource   = "recipe_source_recipe"
	ConstraintTranslationKey = "translation_cache_key"
)

// ValidationError reports a field that failed a required, range, length or
// enumeration check. Nothing is written when it is returned.
type ValidationError struct {
	Entity string // table name, e.g. "recipe"
	Field  string // column name, e.g. "servings"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %s", e.Entity, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a unique constraint violation.
type ConflictError struct {
	Table      string
	Constraint string
	Columns    []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: duplicate %s (%s)", e.Table, e.Constraint, strings.Join(e.Columns, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ReferenceError reports a foreign key pointing at a row that does not exist.
type ReferenceError struct {
	Table string // table being written
	Field string // foreign key column
	ID    int64  // missing parent id
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s.%s: no row with id %d", e.Table, e.Field, e.ID)
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

// IntegrityError lists the problems found by a consistency audit.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	if len(e.Problems) == 1 {
		return "integrity check: " + e.Problems[0]
	}
	return fmt.Sprintf("integrity check: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// IsConflict reports whether err is a unique constraint conflict on the named
// constraint. An empty constraint matches any conflict.
func IsConflict(err error, constraint string) bool {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return false
	}
	return constraint == "" || ce.Constraint == constraint
}

// invalid is shorthand for building a ValidationError.
func invalid(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}
