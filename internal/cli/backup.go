// Backup, restore and integrity commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

func newBackupCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a verified copy of the database",
		Long: `Backup writes a consistent copy of the database into the backup directory
(backup_dir in config.yaml, default <data-dir>/backups) and checks it before
reporting success.

Example:
  recipebox backup
  recipebox backup --dir /mnt/usb/recipebox
  recipebox backup list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cfg, err := a.attach(true)
			if err != nil {
				return err
			}
			defer b.Detach()

			target := cfg.BackupDir
			if dir != "" {
				if target, err = filepath.Abs(dir); err != nil {
					return userError(fmt.Errorf("backup dir: %w", err))
				}
			}
			info, err := b.Backup(context.Background(), target)
			if err != nil {
				return fail(fmt.Errorf("backup: %w", err))
			}
			if a.jsonMode {
				return printJSON(cmd, info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup %s (%s)\n", info.Path, humanize.Bytes(uint64(info.SizeBytes)))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "backup directory instead of backup_dir")

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.cookbookConfig()
			if err != nil {
				return err
			}
			target := cfg.BackupDir
			if dir != "" {
				if target, err = filepath.Abs(dir); err != nil {
					return userError(fmt.Errorf("backup dir: %w", err))
				}
			}
			backups, err := sqlite.ListBackups(target)
			if err != nil {
				return sysError(fmt.Errorf("list backups: %w", err))
			}
			if a.jsonMode {
				return printJSON(cmd, backups)
			}
			printBackupTable(cmd.OutOrStdout(), backups)
			return nil
		},
	}
	cmd.AddCommand(list)
	return cmd
}

func printBackupTable(w io.Writer, backups []types.BackupInfo) {
	if len(backups) == 0 {
		fmt.Fprintln(w, "No backups found.")
		return
	}
	rows := make([][]string, len(backups))
	for i, info := range backups {
		rows[i] = []string{
			info.ID,
			humanize.Time(info.CreatedAt),
			humanize.Bytes(uint64(info.SizeBytes)),
			info.Path,
		}
	}
	printTable(w, []string{"ID", "CREATED", "SIZE", "PATH"}, rows)
	fmt.Fprintf(w, "Total: %d backup(s)\n", len(backups))
}

func newRestoreCmd(a *app) *cobra.Command {
	var noBackup bool
	cmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Replace the database with a backup",
		Long: `Restore verifies FILE and copies it over the database. The current database
is backed up first unless --no-backup is given. The restored schema is left
at the revision the backup was taken at; run "recipebox migrate up" after.

Example:
  recipebox backup list
  recipebox restore ~/.local/share/recipebox/backups/<id>.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.cookbookConfig()
			if err != nil {
				return err
			}
			src, err := filepath.Abs(args[0])
			if err != nil {
				return userError(err)
			}
			if _, err := os.Stat(src); err != nil {
				return userError(fmt.Errorf("backup %s: %w", args[0], err))
			}

			ctx := context.Background()
			out := cmd.OutOrStdout()
			var previous *types.BackupInfo
			if !noBackup {
				if previous, err = a.backupExisting(ctx, cfg); err != nil {
					return err
				}
			}
			if err := sqlite.RestoreBackup(ctx, src, cfg, a.logger); err != nil {
				if errors.Is(err, types.ErrIntegrity) {
					return userError(fmt.Errorf("restore %s: %w", args[0], err))
				}
				return sysError(fmt.Errorf("restore %s: %w", args[0], err))
			}

			if a.jsonMode {
				return printJSON(cmd, map[string]any{"restored": src, "previous": previous})
			}
			if previous != nil {
				fmt.Fprintf(out, "Previous database saved to %s\n", previous.Path)
			}
			fmt.Fprintf(out, "Restored %s\n", src)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not back up the current database first")
	return cmd
}

// backupExisting copies the current database, if there is one, before it is
// overwritten.
func (a *app) backupExisting(ctx context.Context, cfg types.Config) (*types.BackupInfo, error) {
	if _, err := os.Stat(filepath.Join(cfg.DataDir, types.DatabaseFileName)); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	b, _, err := a.attach(true)
	if err != nil {
		return nil, err
	}
	defer b.Detach()

	info, err := b.Backup(ctx, cfg.BackupDir)
	if err != nil {
		return nil, fail(fmt.Errorf("backup before restore: %w", err))
	}
	return info, nil
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Audit the database for corruption and broken references",
		Long: `Check runs SQLite's integrity check and foreign key check. Any problem is
printed and the command exits with status 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := a.attach(true)
			if err != nil {
				return err
			}
			defer b.Detach()

			err = b.CheckIntegrity(context.Background())
			var ie *types.IntegrityError
			if err != nil && !errors.As(err, &ie) {
				return sysError(fmt.Errorf("check: %w", err))
			}

			problems := []string{}
			if ie != nil {
				problems = ie.Problems
			}
			if a.jsonMode {
				if perr := printJSON(cmd, map[string]any{"ok": ie == nil, "problems": problems}); perr != nil {
					return perr
				}
			} else if ie == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", b.Path())
			} else {
				for _, p := range problems {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
			}
			if ie != nil {
				return sysError(ie)
			}
			return nil
		},
	}
}
