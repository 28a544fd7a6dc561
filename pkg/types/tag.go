package types

import (
	"regexp"
	"strings"
	"time"
)

// DefaultTagColor is the display color of a tag created without one.
const DefaultTagColor = "#808080"

var tagColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Tag is a master categorical label. Name is globally unique.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the name and color, filling the default color.
func (t *Tag) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalid("tag", "name", "required")
	}
	if t.Color == "" {
		t.Color = DefaultTagColor
	}
	if !tagColorPattern.MatchString(t.Color) {
		return invalid("tag", "color", "must be a #RRGGBB hex color")
	}
	return nil
}

// RecipeTag joins a recipe to a tag. The pair is unique.
type RecipeTag struct {
	ID       int64 `json:"id"`
	RecipeID int64 `json:"recipe_id"`
	TagID    int64 `json:"tag_id"`
}
