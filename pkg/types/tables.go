package types

// Table names as they appear in the database.
const (
	TableRecipe           = "recipe"
	TableIngredient       = "ingredient"
	TableRecipeIngredient = "recipe_ingredient"
	TableRecipeStep       = "recipe_step"
	TableTag              = "tag"
	TableRecipeTag        = "recipe_tag"
	TableRecipeSource     = "recipe_source"
	TableTranslationCache = "translation_cache"
)

// StandardTableNames lists the entity tables in dependency order, masters
// first.
var StandardTableNames = []string{
	TableIngredient,
	TableTag,
	TableRecipe,
	TableRecipeIngredient,
	TableRecipeStep,
	TableRecipeTag,
	TableRecipeSource,
	TableTranslationCache,
}
