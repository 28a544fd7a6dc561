package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move the schema along the migration chain",
	}
	cmd.AddCommand(
		newMigrateUpCmd(a),
		newMigrateDownCmd(a),
		newMigrateStepsCmd(a),
		newMigrateStatusCmd(a),
	)
	return cmd
}

// migrationResult is the JSON shape of up, down and steps.
type migrationResult struct {
	Applied  int               `json:"applied"`
	Revision string            `json:"revision"`
	Backup   *types.BackupInfo `json:"backup,omitempty"`
}

// runMigration attaches without migrating, runs move against the runner and
// reports the revision it ended on. With backup set, a copy is taken first
// when the database has a schema and move is about to change it.
func (a *app) runMigration(cmd *cobra.Command, backup bool, move func(ctx context.Context, r *migrate.Runner) (int, error)) error {
	b, cfg, err := a.attach(true)
	if err != nil {
		return err
	}
	defer b.Detach()

	ctx := context.Background()
	runner, err := b.Migrator()
	if err != nil {
		return fail(err)
	}

	var info *types.BackupInfo
	if backup {
		if info, err = backupIfNeeded(ctx, b, runner, cfg); err != nil {
			return fail(err)
		}
	}

	applied, err := move(ctx, runner)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail(err)
	}
	revision, cerr := runner.Current(ctx)
	if cerr != nil {
		return fail(cerr)
	}

	if a.jsonMode {
		return printJSON(cmd, migrationResult{Applied: applied, Revision: revision, Backup: info})
	}
	out := cmd.OutOrStdout()
	if info != nil {
		fmt.Fprintf(out, "Backup %s (%s)\n", info.Path, humanize.Bytes(uint64(info.SizeBytes)))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(out, "Already at revision %s\n", revisionLabel(revision))
		return nil
	}
	fmt.Fprintf(out, "Applied %d migration(s), now at revision %s\n", applied, revisionLabel(revision))
	return nil
}

// backupIfNeeded copies the database when backup_before_migrate is on, a
// schema exists and migrations are pending.
func backupIfNeeded(ctx context.Context, b *sqlite.Backend, runner *migrate.Runner, cfg types.Config) (*types.BackupInfo, error) {
	if !cfg.BackupBeforeMigrate {
		return nil, nil
	}
	current, err := runner.Current(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := runner.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if current == "" || len(pending) == 0 {
		return nil, nil
	}
	info, err := b.Backup(ctx, cfg.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("backup before migrate: %w", err)
	}
	return info, nil
}

func revisionLabel(revision string) string {
	if revision == "" {
		return "(base)"
	}
	return revision
}

func newMigrateUpCmd(a *app) *cobra.Command {
	var noBackup bool
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Long: `Up applies pending migrations in chain order. Each step commits together
with the revision marker, so a failure leaves the database at the last
revision that succeeded. When backup_before_migrate is set the database is
copied first.

Example:
  recipebox migrate up
  recipebox migrate up --no-backup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMigration(cmd, !noBackup, func(ctx context.Context, r *migrate.Runner) (int, error) {
				return r.Up(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the pre-migration backup")
	return cmd
}

func newMigrateDownCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Reverse the newest migration",
		Long: `Down reverses the newest applied migration, or every migration with --all.

Example:
  recipebox migrate down
  recipebox migrate down --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMigration(cmd, false, func(ctx context.Context, r *migrate.Runner) (int, error) {
				if all {
					return r.Down(ctx)
				}
				return r.Steps(ctx, -1)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reverse every applied migration")
	return cmd
}

func newMigrateStepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "steps N",
		Short: "Move N migrations forward, or back when N is negative",
		Long: `Steps applies the next N migrations, or reverses the last -N.

Example:
  recipebox migrate steps 2
  recipebox migrate steps -- -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return userError(fmt.Errorf("invalid step count %q", args[0]))
			}
			return a.runMigration(cmd, n > 0, func(ctx context.Context, r *migrate.Runner) (int, error) {
				return r.Steps(ctx, n)
			})
		},
	}
}

func newMigrateStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := a.attach(true)
			if err != nil {
				return err
			}
			defer b.Detach()

			runner, err := b.Migrator()
			if err != nil {
				return fail(err)
			}
			st, err := runner.Status(context.Background())
			if err != nil {
				return fail(err)
			}
			if a.jsonMode {
				return printJSON(cmd, st)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current: %s\n", revisionLabel(st.Current))
			fmt.Fprintf(out, "Head:    %s\n", st.Head)
			rows := make([][]string, 0, len(st.Applied)+len(st.Pending))
			for _, rev := range st.Applied {
				rows = append(rows, []string{rev, "applied"})
			}
			for _, rev := range st.Pending {
				rows = append(rows, []string{rev, "pending"})
			}
			printTable(out, []string{"REVISION", "STATE"}, rows)
			return nil
		},
	}
}
