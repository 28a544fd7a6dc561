package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newTranslationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translation",
		Short: "Inspect and maintain the translation cache",
	}

	var from, to string
	cmd.PersistentFlags().StringVar(&from, "from", types.DefaultLanguage, "source language")
	cmd.PersistentFlags().StringVar(&to, "to", "en", "target language")

	lookup := &cobra.Command{
		Use:   "lookup TEXT",
		Short: "Print the cached translation of TEXT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				cache, err := b.Translations()
				if err != nil {
					return fail(err)
				}
				t, err := cache.Lookup(context.Background(), types.KeyFor(args[0], from, to))
				if err != nil {
					return fail(fmt.Errorf("lookup %s->%s: %w", from, to, err))
				}
				if a.jsonMode {
					return printJSON(cmd, t)
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.TranslatedText)
				return nil
			})
		},
	}

	var ttl time.Duration
	put := &cobra.Command{
		Use:   "put TEXT TRANSLATION",
		Short: "Cache a translation",
		Long: `Put stores a translation. A live entry for the same text and language pair
is kept and printed instead; an expired one is replaced.

Example:
  recipebox translation put にんじん carrot
  recipebox translation put 玉ねぎ onion --ttl 720h`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl < 0 {
				return userError(fmt.Errorf("ttl must not be negative"))
			}
			return a.withCookbook(func(b *sqlite.Backend) error {
				cache, err := b.Translations()
				if err != nil {
					return fail(err)
				}
				entry := &types.Translation{
					SourceText:     args[0],
					TranslatedText: args[1],
					SourceLang:     from,
					TargetLang:     to,
				}
				if ttl > 0 {
					expires := time.Now().UTC().Add(ttl)
					entry.ExpiresAt = &expires
				}
				t, err := cache.Put(context.Background(), entry)
				if err != nil {
					return fail(fmt.Errorf("put translation: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, t)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", t.SourceText, t.TranslatedText)
				return nil
			})
		},
	}
	put.Flags().DurationVar(&ttl, "ttl", 0, "time until the entry expires (0 = never)")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired translations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCookbook(func(b *sqlite.Backend) error {
				cache, err := b.Translations()
				if err != nil {
					return fail(err)
				}
				n, err := cache.Prune(context.Background(), time.Now())
				if err != nil {
					return fail(fmt.Errorf("prune translations: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, map[string]int64{"pruned": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired translation(s)\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(lookup, put, prune)
	return cmd
}
