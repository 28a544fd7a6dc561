package sqlite

import (
	"errors"
	"regexp"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/recipebox/pkg/types"
)

var (
	uniqueFailed  = regexp.MustCompile(`UNIQUE constraint failed: ([a-z_]+\.[a-z_]+(?:, [a-z_]+\.[a-z_]+)*)`)
	checkFailed   = regexp.MustCompile(`CHECK constraint failed: ([a-z_]+)`)
	notNullFailed = regexp.MustCompile(`NOT NULL constraint failed: ([a-z_]+)\.([a-z_]+)`)
)

// uniqueConstraint maps the column list SQLite reports for a UNIQUE failure
// to the constraint name declared in the migrations.
func uniqueConstraint(columns string) string {
	switch columns {
	case "ingredient.name_normalized":
		return types.ConstraintIngredientName
	case "tag.name":
		return types.ConstraintTagName
	case "recipe_step.recipe_id, recipe_step.step_number":
		return types.ConstraintStepNumber
	case "recipe_tag.recipe_id, recipe_tag.tag_id":
		return types.ConstraintRecipeTag
	case "recipe_source.recipe_id":
		return types.ConstraintRecipeSource
	case "translation_cache.source_text_hash, translation_cache.source_lang, translation_cache.target_lang":
		return types.ConstraintTranslationKey
	}
	return ""
}

// checkConstraints maps named CHECK constraints to the column they guard.
var checkConstraints = map[string][2]string{
	"recipe_title":                       {types.TableRecipe, "title"},
	"recipe_servings":                    {types.TableRecipe, "servings"},
	"recipe_prep_time_minutes":           {types.TableRecipe, "prep_time_minutes"},
	"recipe_cook_time_minutes":           {types.TableRecipe, "cook_time_minutes"},
	"recipe_is_deleted":                  {types.TableRecipe, "is_deleted"},
	"ingredient_name":                    {types.TableIngredient, "name"},
	"ingredient_name_normalized_present": {types.TableIngredient, "name_normalized"},
	"tag_name_present":                   {types.TableTag, "name"},
	"tag_color":                          {types.TableTag, "color"},
	"recipe_ingredient_name":             {types.TableRecipeIngredient, "name"},
	"recipe_ingredient_amount":           {types.TableRecipeIngredient, "amount"},
	"recipe_ingredient_order_index":      {types.TableRecipeIngredient, "order_index"},
	"recipe_step_step_number":            {types.TableRecipeStep, "step_number"},
	"recipe_step_description":            {types.TableRecipeStep, "description"},
	"recipe_source_source_type":          {types.TableRecipeSource, "source_type"},
}

// translateError maps SQLite constraint failures onto the error taxonomy in
// pkg/types. Anything else is returned unchanged.
func translateError(err error) error {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}
	msg := se.Error()

	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		strings.Contains(msg, "UNIQUE constraint failed"):
		return uniqueConflict(msg)
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK, strings.Contains(msg, "CHECK constraint failed"):
		if m := checkFailed.FindStringSubmatch(msg); m != nil {
			if col, ok := checkConstraints[m[1]]; ok {
				return &types.ValidationError{Entity: col[0], Field: col[1], Reason: "violates " + m[1]}
			}
		}
		return &types.ValidationError{Entity: "unknown", Field: "unknown", Reason: msg}
	case code == sqlite3.SQLITE_CONSTRAINT_NOTNULL, strings.Contains(msg, "NOT NULL constraint failed"):
		if m := notNullFailed.FindStringSubmatch(msg); m != nil {
			return &types.ValidationError{Entity: m[1], Field: m[2], Reason: "required"}
		}
		return &types.ValidationError{Entity: "unknown", Field: "unknown", Reason: msg}
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, strings.Contains(msg, "FOREIGN KEY constraint failed"):
		// SQLite does not say which key failed. Writes check their parents
		// first, so this only surfaces for rows changed behind our back.
		return &types.ReferenceError{Table: "unknown", Field: "unknown"}
	}
	return err
}

func uniqueConflict(msg string) error {
	m := uniqueFailed.FindStringSubmatch(msg)
	if m == nil {
		return &types.ConflictError{Table: "unknown", Constraint: "unknown"}
	}
	ce := &types.ConflictError{Constraint: uniqueConstraint(m[1])}
	for _, qualified := range strings.Split(m[1], ", ") {
		table, column, _ := strings.Cut(qualified, ".")
		ce.Table = table
		ce.Columns = append(ce.Columns, column)
	}
	if ce.Constraint == "" {
		ce.Constraint = ce.Table + "_" + strings.Join(ce.Columns, "_")
	}
	return ce
}
