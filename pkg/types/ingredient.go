package types

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Ingredient is a master row naming an ingredient once, independent of any
// recipe. NameNormalized is globally unique.
type Ingredient struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NameNormalized string    `json:"name_normalized"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate fills NameNormalized from Name when empty and re-normalizes it
// otherwise, so two spellings of the same name always collide.
func (i *Ingredient) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	if i.Name == "" {
		return invalid("ingredient", "name", "required")
	}
	if i.NameNormalized == "" {
		i.NameNormalized = NormalizeName(i.Name)
	} else {
		i.NameNormalized = NormalizeName(i.NameNormalized)
	}
	if i.NameNormalized == "" {
		return invalid("ingredient", "name_normalized", "required")
	}
	return nil
}

// RecipeIngredient is one ingredient line of a recipe. Name is the text the
// user entered and is kept even when IngredientID links a master row.
type RecipeIngredient struct {
	ID           int64    `json:"id"`
	RecipeID     int64    `json:"recipe_id"`
	IngredientID *int64   `json:"ingredient_id,omitempty"`
	Name         string   `json:"name"`
	Amount       *float64 `json:"amount,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	Note         string   `json:"note,omitempty"`
	OrderIndex   int      `json:"order_index"`
}

// Validate checks the free-text name and amount. RecipeID is checked by the
// backend against the recipe table.
func (ri *RecipeIngredient) Validate() error {
	ri.Name = strings.TrimSpace(ri.Name)
	if ri.Name == "" {
		return invalid("recipe_ingredient", "name", "required")
	}
	if ri.Amount != nil && *ri.Amount < 0 {
		return invalid("recipe_ingredient", "amount", "must not be negative")
	}
	if ri.OrderIndex < 0 {
		return invalid("recipe_ingredient", "order_index", "must not be negative")
	}
	return nil
}

// NormalizeName returns the canonical form of an ingredient name: NFKC
// composed, full and half width folded, case folded, katakana mapped to
// hiragana, and whitespace collapsed to single spaces. ニンジン, にんじん and
// ﾆﾝｼﾞﾝ all normalize to にんじん.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = width.Fold.String(s)
	s = cases.Fold().String(s)
	s = strings.Map(katakanaToHiragana, s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// katakanaToHiragana maps ァ..ヶ onto ぁ..ゖ; the two blocks share layout.
func katakanaToHiragana(r rune) rune {
	if r >= 'ァ' && r <= 'ヶ' {
		return r - ('ァ' - 'ぁ')
	}
	return r
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
