package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and database",
		Long: `Init writes a default config.yaml if none exists, creates the database and
upgrades it to the newest schema revision.

Example:
  recipebox init
  recipebox init --data-dir ./kitchen`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir := ""
			if a.dataDir != "" {
				abs, err := filepath.Abs(a.dataDir)
				if err != nil {
					return userError(fmt.Errorf("data dir: %w", err))
				}
				dataDir = abs
			}
			wrote, err := writeConfigIfMissing(a.resolvedConfigDir, dataDir)
			if err != nil {
				return sysError(err)
			}

			b, cfg, err := a.attach(false)
			if err != nil {
				return err
			}
			defer b.Detach()

			runner, err := b.Migrator()
			if err != nil {
				return fail(err)
			}
			// auto_migrate may be off in an existing config.yaml.
			ctx := context.Background()
			if _, err := runner.Up(ctx); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fail(err)
			}
			revision, err := runner.Current(ctx)
			if err != nil {
				return fail(err)
			}

			if a.jsonMode {
				return printJSON(cmd, map[string]any{
					"config_dir":     a.resolvedConfigDir,
					"config_written": wrote,
					"data_dir":       cfg.DataDir,
					"database":       b.Path(),
					"revision":       revision,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "recipebox initialized")
			fmt.Fprintln(out, "  config:  ", filepath.Join(a.resolvedConfigDir, configFileExt))
			fmt.Fprintln(out, "  database:", b.Path())
			fmt.Fprintln(out, "  revision:", revision)
			return nil
		},
	}
}
