package types

// RecipeAggregate is a recipe together with everything it owns. It is written
// and read in a single transaction so readers never see a partial aggregate.
//
// On write, Tags are matched by ID when set and by name otherwise (creating the
// tag on first use). Ingredients keep their slice order unless OrderIndex is
// set; Steps are stored by StepNumber.
type RecipeAggregate struct {
	Recipe      Recipe             `json:"recipe"`
	Ingredients []RecipeIngredient `json:"ingredients"`
	Steps       []RecipeStep       `json:"steps"`
	Tags        []Tag              `json:"tags"`
	Source      *RecipeSource      `json:"source,omitempty"`
}

// Validate checks every member and the uniqueness rules that can be decided
// without the database: step numbers and tags must not repeat.
func (a *RecipeAggregate) Validate() error {
	if err := a.Recipe.Validate(); err != nil {
		return err
	}
	for i := range a.Ingredients {
		if err := a.Ingredients[i].Validate(); err != nil {
			return err
		}
	}
	seenSteps := make(map[int]bool, len(a.Steps))
	for i := range a.Steps {
		if err := a.Steps[i].Validate(); err != nil {
			return err
		}
		if seenSteps[a.Steps[i].StepNumber] {
			return &ConflictError{
				Table:      "recipe_step",
				Constraint: ConstraintStepNumber,
				Columns:    []string{"recipe_id", "step_number"},
			}
		}
		seenSteps[a.Steps[i].StepNumber] = true
	}
	seenTagIDs := make(map[int64]bool, len(a.Tags))
	seenTagNames := make(map[string]bool, len(a.Tags))
	for i := range a.Tags {
		tag := &a.Tags[i]
		if tag.ID == 0 {
			if err := tag.Validate(); err != nil {
				return err
			}
			if seenTagNames[tag.Name] {
				return &ConflictError{Table: "recipe_tag", Constraint: ConstraintRecipeTag, Columns: []string{"recipe_id", "tag_id"}}
			}
			seenTagNames[tag.Name] = true
			continue
		}
		if seenTagIDs[tag.ID] {
			return &ConflictError{Table: "recipe_tag", Constraint: ConstraintRecipeTag, Columns: []string{"recipe_id", "tag_id"}}
		}
		seenTagIDs[tag.ID] = true
	}
	if a.Source != nil {
		if err := a.Source.Validate(); err != nil {
			return err
		}
	}
	return nil
}
