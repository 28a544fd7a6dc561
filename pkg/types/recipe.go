package types

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Recipe field limits.
const (
	MaxTitleLength  = 200
	MinServings     = 1
	MaxServings     = 100
	MinMinutes      = 0
	MaxMinutes      = 1440
	DefaultLanguage = "ja"
)

// Recipe is the root entity of a recipe aggregate. Optional text fields are
// stored as NULL when empty; optional numbers are nil when absent.
type Recipe struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	TitleOriginal   string    `json:"title_original,omitempty"`
	Description     string    `json:"description,omitempty"`
	Servings        *int      `json:"servings,omitempty"`
	PrepTimeMinutes *int      `json:"prep_time_minutes,omitempty"`
	CookTimeMinutes *int      `json:"cook_time_minutes,omitempty"`
	ImagePath       string    `json:"image_path,omitempty"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	IsDeleted       bool      `json:"is_deleted"`
}

// Validate checks the title and the numeric ranges. Absent numbers are valid.
func (r *Recipe) Validate() error {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return invalid("recipe", "title", "required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return invalid("recipe", "title", "must be at most 200 characters")
	}
	if r.Servings != nil && (*r.Servings < MinServings || *r.Servings > MaxServings) {
		return invalid("recipe", "servings", "must be between 1 and 100")
	}
	if r.PrepTimeMinutes != nil && (*r.PrepTimeMinutes < MinMinutes || *r.PrepTimeMinutes > MaxMinutes) {
		return invalid("recipe", "prep_time_minutes", "must be between 0 and 1440")
	}
	if r.CookTimeMinutes != nil && (*r.CookTimeMinutes < MinMinutes || *r.CookTimeMinutes > MaxMinutes) {
		return invalid("recipe", "cook_time_minutes", "must be between 0 and 1440")
	}
	return nil
}

// Normalize trims the title and fills the language default.
func (r *Recipe) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
}

// TotalMinutes returns prep plus cook time, counting absent values as zero.
func (r *Recipe) TotalMinutes() int {
	total := 0
	if r.PrepTimeMinutes != nil {
		total += *r.PrepTimeMinutes
	}
	if r.CookTimeMinutes != nil {
		total += *r.CookTimeMinutes
	}
	return total
}

// ReadOptions controls visibility of soft-deleted recipes on reads.
type ReadOptions struct {
	IncludeDeleted bool
}

// RecipeFilter selects recipes for RecipeTable.Fetch. Zero values match all
// live recipes.
type RecipeFilter struct {
	TitleContains  string
	Language       string
	TagID          int64
	IncludeDeleted bool
	OnlyDeleted    bool
	Limit          int
	Offset         int
}

// IntPtr returns a pointer to v. Convenience for the optional numeric fields.
func IntPtr(v int) *int { return &v }
