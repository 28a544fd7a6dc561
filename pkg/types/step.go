package types

import "strings"

// RecipeStep is one numbered instruction of a recipe. StepNumber is unique
// within the recipe and starts at 1.
type RecipeStep struct {
	ID          int64  `json:"id"`
	RecipeID    int64  `json:"recipe_id"`
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path,omitempty"`
}

// Validate checks the step number and description.
func (s *RecipeStep) Validate() error {
	if s.StepNumber <= 0 {
		return invalid("recipe_step", "step_number", "must be greater than 0")
	}
	s.Description = strings.TrimSpace(s.Description)
	if s.Description == "" {
		return invalid("recipe_step", "description", "required")
	}
	return nil
}
