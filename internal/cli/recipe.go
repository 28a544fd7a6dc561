package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newRecipeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage recipes",
	}
	cmd.AddCommand(
		newRecipeAddCmd(a),
		newRecipeGetCmd(a),
		newRecipeListCmd(a),
		newRecipeDeleteCmd(a),
		newRecipeTrashCmd(a),
		newRecipeRestoreCmd(a),
	)
	return cmd
}

type recipeAddFlags struct {
	file        string
	title       string
	description string
	language    string
	servings    int
	prep        int
	cook        int
	ingredients []string
	steps       []string
	tags        []string
	sourceType  string
	sourceURL   string
}

func newRecipeAddCmd(a *app) *cobra.Command {
	var f recipeAddFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recipe with its ingredients, steps and tags",
		Long: `Add writes a recipe and everything it owns in one transaction. Either
build it from flags or pass a JSON aggregate with --file ("-" reads stdin).

An --ingredient value is NAME[,AMOUNT[,UNIT]]. A line whose name matches an
ingredient master is linked to it. Steps are numbered in the order given.
Tags are matched by name and created on first use.

Example:
  recipebox recipe add --title "カレーライス" --servings 4 --cook 40 \
    --ingredient "にんじん,1,本" --ingredient "玉ねぎ,2,個" \
    --step "野菜を切る" --step "煮込む" --tag "夕食"
  recipebox recipe add --file curry.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				ctx := context.Background()
				var agg *types.RecipeAggregate
				var err error
				if f.file != "" {
					agg, err = readAggregate(cmd.InOrStdin(), f.file)
				} else {
					agg, err = f.aggregate(cmd)
				}
				if err != nil {
					return err
				}
				if err := linkMasters(ctx, b, agg); err != nil {
					return fail(err)
				}

				recipes, err := b.Recipes()
				if err != nil {
					return fail(err)
				}
				out, err := recipes.CreateAggregate(ctx, agg)
				if err != nil {
					return fail(fmt.Errorf("add recipe: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, out)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added recipe %d: %s\n", out.Recipe.ID, out.Recipe.Title)
				return nil
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.file, "file", "", "read a JSON recipe aggregate from a file")
	fl.StringVar(&f.title, "title", "", "recipe title")
	fl.StringVar(&f.description, "description", "", "recipe description")
	fl.StringVar(&f.language, "language", "", "language code (default ja)")
	fl.IntVar(&f.servings, "servings", 0, "number of servings (1-100)")
	fl.IntVar(&f.prep, "prep", 0, "preparation time in minutes")
	fl.IntVar(&f.cook, "cook", 0, "cooking time in minutes")
	fl.StringArrayVar(&f.ingredients, "ingredient", nil, "ingredient line NAME[,AMOUNT[,UNIT]] (repeatable)")
	fl.StringArrayVar(&f.steps, "step", nil, "instruction step (repeatable)")
	fl.StringArrayVar(&f.tags, "tag", nil, "tag name (repeatable)")
	fl.StringVar(&f.sourceType, "source-type", string(types.SourceManual), "source type (manual, scrape, ocr)")
	fl.StringVar(&f.sourceURL, "source-url", "", "URL the recipe came from")
	cmd.MarkFlagsMutuallyExclusive("file", "title")
	return cmd
}

// aggregate builds a recipe aggregate from the add flags.
func (f *recipeAddFlags) aggregate(cmd *cobra.Command) (*types.RecipeAggregate, error) {
	agg := &types.RecipeAggregate{
		Recipe: types.Recipe{
			Title:           f.title,
			Description:     f.description,
			Language:        f.language,
			Servings:        optionalInt(cmd, "servings", f.servings),
			PrepTimeMinutes: optionalInt(cmd, "prep", f.prep),
			CookTimeMinutes: optionalInt(cmd, "cook", f.cook),
		},
	}
	for _, arg := range f.ingredients {
		line, err := parseIngredientLine(arg)
		if err != nil {
			return nil, err
		}
		agg.Ingredients = append(agg.Ingredients, line)
	}
	for i, desc := range f.steps {
		agg.Steps = append(agg.Steps, types.RecipeStep{StepNumber: i + 1, Description: desc})
	}
	for _, name := range f.tags {
		agg.Tags = append(agg.Tags, types.Tag{Name: name})
	}

	if f.sourceURL != "" || cmd.Flags().Changed("source-type") {
		st, err := types.ParseSourceType(f.sourceType)
		if err != nil {
			return nil, userError(err)
		}
		src := &types.RecipeSource{SourceType: st, SourceURL: f.sourceURL}
		if u, err := url.Parse(f.sourceURL); err == nil {
			src.SourceSite = u.Hostname()
		}
		agg.Source = src
	}
	return agg, nil
}

// parseIngredientLine parses NAME[,AMOUNT[,UNIT]].
func parseIngredientLine(arg string) (types.RecipeIngredient, error) {
	parts := strings.SplitN(arg, ",", 3)
	line := types.RecipeIngredient{Name: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		if s := strings.TrimSpace(parts[1]); s != "" {
			amount, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return line, userError(fmt.Errorf("ingredient %q: invalid amount %q", line.Name, s))
			}
			line.Amount = &amount
		}
	}
	if len(parts) > 2 {
		line.Unit = strings.TrimSpace(parts[2])
	}
	return line, nil
}

func readAggregate(stdin io.Reader, path string) (*types.RecipeAggregate, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, userError(fmt.Errorf("read %s: %w", path, err))
	}
	var agg types.RecipeAggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, userError(fmt.Errorf("parse %s: %w", path, err))
	}
	return &agg, nil
}

// linkMasters points unlinked ingredient lines at the master with the same
// normalized name, when one exists.
func linkMasters(ctx context.Context, b *sqlite.Backend, agg *types.RecipeAggregate) error {
	masters, err := b.Ingredients()
	if err != nil {
		return err
	}
	for i := range agg.Ingredients {
		line := &agg.Ingredients[i]
		if line.IngredientID != nil || strings.TrimSpace(line.Name) == "" {
			continue
		}
		ing, err := masters.GetByName(ctx, line.Name)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		line.IngredientID = &ing.ID
	}
	return nil
}

func newRecipeGetCmd(a *app) *cobra.Command {
	var includeDeleted bool
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a recipe with its ingredients, steps and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withCookbook(func(b *sqlite.Backend) error {
				recipes, err := b.Recipes()
				if err != nil {
					return fail(err)
				}
				agg, err := recipes.GetAggregate(context.Background(), id, types.ReadOptions{IncludeDeleted: includeDeleted})
				if err != nil {
					return fail(fmt.Errorf("recipe %d: %w", id, err))
				}
				if a.jsonMode {
					return printJSON(cmd, agg)
				}
				printAggregate(cmd.OutOrStdout(), agg)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&includeDeleted, "deleted", false, "show the recipe even if it is in the trash")
	return cmd
}

func printAggregate(w io.Writer, agg *types.RecipeAggregate) {
	r := agg.Recipe
	fmt.Fprintf(w, "%s (#%d)\n", r.Title, r.ID)
	if r.IsDeleted {
		fmt.Fprintln(w, "  [in trash]")
	}
	if r.Description != "" {
		fmt.Fprintf(w, "  %s\n", r.Description)
	}
	fmt.Fprintf(w, "  language: %s  servings: %s  prep: %s  cook: %s  total: %d min\n",
		r.Language, formatOptional(r.Servings), formatOptional(r.PrepTimeMinutes),
		formatOptional(r.CookTimeMinutes), r.TotalMinutes())

	if len(agg.Ingredients) > 0 {
		fmt.Fprintln(w, "\nIngredients:")
		for _, line := range agg.Ingredients {
			amount := ""
			if line.Amount != nil {
				amount = strconv.FormatFloat(*line.Amount, 'f', -1, 64)
			}
			qty := strings.TrimSpace(amount + " " + line.Unit)
			if qty != "" {
				qty = " " + qty
			}
			note := ""
			if line.Note != "" {
				note = " (" + line.Note + ")"
			}
			fmt.Fprintf(w, "  - %s%s%s\n", line.Name, qty, note)
		}
	}
	if len(agg.Steps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for _, s := range agg.Steps {
			fmt.Fprintf(w, "  %d. %s\n", s.StepNumber, s.Description)
		}
	}
	if len(agg.Tags) > 0 {
		names := make([]string, len(agg.Tags))
		for i, t := range agg.Tags {
			names[i] = t.Name
		}
		fmt.Fprintf(w, "\nTags: %s\n", strings.Join(names, ", "))
	}
	if agg.Source != nil {
		fmt.Fprintf(w, "\nSource: %s", agg.Source.SourceType)
		if agg.Source.SourceURL != "" {
			fmt.Fprintf(w, " %s", agg.Source.SourceURL)
		}
		fmt.Fprintln(w)
	}
}

func newRecipeListCmd(a *app) *cobra.Command {
	var (
		title    string
		tag      string
		language string
		deleted  bool
		all      bool
		limit    int
		offset   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Long: `List shows live recipes ordered by id. Soft-deleted recipes are hidden
unless --all or --deleted is given.

Example:
  recipebox recipe list
  recipebox recipe list --title カレー --tag 夕食
  recipebox recipe list --deleted
  recipebox recipe list --limit 10 --offset 20 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				ctx := context.Background()
				filter := types.RecipeFilter{
					TitleContains:  title,
					Language:       language,
					IncludeDeleted: all,
					OnlyDeleted:    deleted,
					Limit:          limit,
					Offset:         offset,
				}
				if tag != "" {
					tags, err := b.Tags()
					if err != nil {
						return fail(err)
					}
					t, err := tags.GetByName(ctx, tag)
					if err != nil {
						return fail(fmt.Errorf("tag %q: %w", tag, err))
					}
					filter.TagID = t.ID
				}

				recipes, err := b.Recipes()
				if err != nil {
					return fail(err)
				}
				list, err := recipes.Fetch(ctx, filter)
				if err != nil {
					return fail(fmt.Errorf("list recipes: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, list)
				}
				printRecipeTable(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&title, "title", "", "only titles containing this text")
	fl.StringVar(&tag, "tag", "", "only recipes with this tag")
	fl.StringVar(&language, "language", "", "only recipes in this language")
	fl.BoolVar(&deleted, "deleted", false, "only recipes in the trash")
	fl.BoolVar(&all, "all", false, "include recipes in the trash")
	fl.IntVar(&limit, "limit", 0, "maximum number of results (0 = no limit)")
	fl.IntVar(&offset, "offset", 0, "skip this many results")
	return cmd
}

func printRecipeTable(w io.Writer, list []*types.Recipe) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No recipes found.")
		return
	}
	rows := make([][]string, len(list))
	for i, r := range list {
		title := truncate(r.Title, 40)
		if r.IsDeleted {
			title += " [trash]"
		}
		rows[i] = []string{
			strconv.FormatInt(r.ID, 10),
			title,
			r.Language,
			formatOptional(r.Servings),
			strconv.Itoa(r.TotalMinutes()),
			r.UpdatedAt.Local().Format("2006-01-02"),
		}
	}
	printTable(w, []string{"ID", "TITLE", "LANG", "SERVINGS", "MINUTES", "UPDATED"}, rows)
	fmt.Fprintf(w, "Total: %d recipe(s)\n", len(list))
}

// newRecipeIDCmd builds the recipe commands that take one id and print a
// confirmation.
func newRecipeIDCmd(a *app, use, short, done string, op func(ctx context.Context, rt types.RecipeTable, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withCookbook(func(b *sqlite.Backend) error {
				recipes, err := b.Recipes()
				if err != nil {
					return fail(err)
				}
				if err := op(context.Background(), recipes, id); err != nil {
					return fail(fmt.Errorf("recipe %d: %w", id, err))
				}
				if a.jsonMode {
					return printJSON(cmd, map[string]any{"id": id, "status": done})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recipe %d %s\n", id, done)
				return nil
			})
		},
	}
}

func newRecipeDeleteCmd(a *app) *cobra.Command {
	return newRecipeIDCmd(a, "delete", "Delete a recipe and everything it owns", "deleted",
		func(ctx context.Context, rt types.RecipeTable, id int64) error {
			return rt.Delete(ctx, id)
		})
}

func newRecipeTrashCmd(a *app) *cobra.Command {
	return newRecipeIDCmd(a, "trash", "Move a recipe to the trash", "moved to trash",
		func(ctx context.Context, rt types.RecipeTable, id int64) error {
			return rt.SoftDelete(ctx, id)
		})
}

func newRecipeRestoreCmd(a *app) *cobra.Command {
	return newRecipeIDCmd(a, "restore", "Take a recipe out of the trash", "restored",
		func(ctx context.Context, rt types.RecipeTable, id int64) error {
			return rt.Restore(ctx, id)
		})
}
