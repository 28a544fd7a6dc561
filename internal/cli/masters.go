// Ingredient and tag master commands.
package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newIngredientCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingredient",
		Short: "Manage ingredient masters",
	}

	var addCategory string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an ingredient master",
		Long: `Add creates an ingredient master. Names are unique after normalization, so
"ニンジン", "にんじん" and "ﾆﾝｼﾞﾝ" are the same ingredient.

Example:
  recipebox ingredient add にんじん --category 野菜`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				masters, err := b.Ingredients()
				if err != nil {
					return fail(err)
				}
				ing, err := masters.Create(context.Background(), &types.Ingredient{Name: args[0], Category: addCategory})
				if err != nil {
					return fail(fmt.Errorf("add ingredient: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, ing)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added ingredient %d: %s\n", ing.ID, ing.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&addCategory, "category", "", "ingredient category")

	var listCategory string
	list := &cobra.Command{
		Use:   "list",
		Short: "List ingredient masters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				masters, err := b.Ingredients()
				if err != nil {
					return fail(err)
				}
				ings, err := masters.Fetch(context.Background(), listCategory)
				if err != nil {
					return fail(fmt.Errorf("list ingredients: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, ings)
				}
				out := cmd.OutOrStdout()
				if len(ings) == 0 {
					fmt.Fprintln(out, "No ingredients found.")
					return nil
				}
				rows := make([][]string, len(ings))
				for i, ing := range ings {
					rows[i] = []string{strconv.FormatInt(ing.ID, 10), ing.Name, ing.NameNormalized, ing.Category}
				}
				printTable(out, []string{"ID", "NAME", "NORMALIZED", "CATEGORY"}, rows)
				fmt.Fprintf(out, "Total: %d ingredient(s)\n", len(ings))
				return nil
			})
		},
	}
	list.Flags().StringVar(&listCategory, "category", "", "only this category")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an ingredient master",
		Long: `Delete removes the master. Recipe lines that referenced it keep their
name and lose the link.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withCookbook(func(b *sqlite.Backend) error {
				masters, err := b.Ingredients()
				if err != nil {
					return fail(err)
				}
				if err := masters.Delete(context.Background(), id); err != nil {
					return fail(fmt.Errorf("ingredient %d: %w", id, err))
				}
				return printDeleted(cmd, a, "Ingredient", id)
			})
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	var addCategory, addColor string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a tag",
		Long: `Add creates a tag. Colors are #RRGGBB and default to ` + types.DefaultTagColor + `.

Example:
  recipebox tag add 夕食 --category meal --color "#FF8800"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				tags, err := b.Tags()
				if err != nil {
					return fail(err)
				}
				tag, err := tags.Create(context.Background(), &types.Tag{Name: args[0], Category: addCategory, Color: addColor})
				if err != nil {
					return fail(fmt.Errorf("add tag: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, tag)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added tag %d: %s\n", tag.ID, tag.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&addCategory, "category", "", "tag category")
	add.Flags().StringVar(&addColor, "color", "", "display color (#RRGGBB)")

	var listCategory string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				tags, err := b.Tags()
				if err != nil {
					return fail(err)
				}
				list, err := tags.Fetch(context.Background(), listCategory)
				if err != nil {
					return fail(fmt.Errorf("list tags: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No tags found.")
					return nil
				}
				rows := make([][]string, len(list))
				for i, t := range list {
					rows[i] = []string{strconv.FormatInt(t.ID, 10), t.Name, t.Category, t.Color}
				}
				printTable(out, []string{"ID", "NAME", "CATEGORY", "COLOR"}, rows)
				fmt.Fprintf(out, "Total: %d tag(s)\n", len(list))
				return nil
			})
		},
	}
	list.Flags().StringVar(&listCategory, "category", "", "only this category")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a tag and its recipe assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withCookbook(func(b *sqlite.Backend) error {
				tags, err := b.Tags()
				if err != nil {
					return fail(err)
				}
				if err := tags.Delete(context.Background(), id); err != nil {
					return fail(fmt.Errorf("tag %d: %w", id, err))
				}
				return printDeleted(cmd, a, "Tag", id)
			})
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func printDeleted(cmd *cobra.Command, a *app, kind string, id int64) error {
	if a.jsonMode {
		return printJSON(cmd, map[string]any{"id": id, "status": "deleted"})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d deleted\n", kind, id)
	return nil
}
