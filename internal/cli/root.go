// Package cli implements the recipebox command-line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/recipebox/internal/migrate"
	"github.com/mesh-intelligence/recipebox/internal/paths"
	"github.com/mesh-intelligence/recipebox/internal/sqlite"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }

func sysError(err error) error { return &exitError{code: exitSysError, err: err} }

// fail classifies a storage error: bad input and missing rows are the
// user's, everything else is the system's.
func fail(err error) error {
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	switch {
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrReference),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, migrate.ErrUnknownRevision),
		errors.Is(err, migrate.ErrOutOfRange),
		errors.Is(err, migrate.ErrIrreversible):
		return userError(err)
	}
	return sysError(err)
}

// exitCode returns the process exit code for err. Errors that were not
// classified come from cobra's flag and argument parsing.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// app holds global flag values and the state built in PersistentPreRunE.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool

	resolvedConfigDir string
	config            *viper.Viper
	logger            *zap.Logger
}

// NewRootCmd creates the top-level "recipebox" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "recipebox",
		Short: "Recipe storage with schema migrations",
		Long: `recipebox manages a local recipe database: recipes with their ingredient
lines, steps, tags and sources, ingredient and tag masters, a translation
cache, and the migration chain that evolves the schema.`,
		Version: Version,
		// Errors are printed once by Execute.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return userError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/recipebox)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/recipebox)")
	pf.BoolVar(&a.jsonMode, "json", false, "output as JSON")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newMigrateCmd(a),
		newRecipeCmd(a),
		newIngredientCmd(a),
		newTagCmd(a),
		newTranslationCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newCheckCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return exitCode(err)
}

// setup resolves the config directory, loads config.yaml and builds the
// logger.
func (a *app) setup() error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return userError(err)
	}
	a.resolvedConfigDir = configDir
	a.config = cfg

	logger, err := newLogger(cfg.GetString(cfgKeyLogLevel), a.verbose)
	if err != nil {
		return userError(err)
	}
	a.logger = logger
	return nil
}

// newLogger builds a JSON production logger at level, or a console
// development logger at debug when verbose is set. Both write to stderr.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// attach opens the cookbook for a command. With skipMigrate the schema is
// left where it is, which the migrate commands need. The caller must defer
// Detach.
func (a *app) attach(skipMigrate bool) (*sqlite.Backend, types.Config, error) {
	cfg, err := a.cookbookConfig()
	if err != nil {
		return nil, cfg, err
	}
	if skipMigrate {
		cfg.SkipMigrate = true
	}
	b := sqlite.NewBackend(a.logger)
	if err := b.Attach(cfg); err != nil {
		return nil, cfg, fail(fmt.Errorf("attach cookbook: %w", err))
	}
	return b, cfg, nil
}

// withCookbook attaches, runs fn, and detaches.
func (a *app) withCookbook(fn func(b *sqlite.Backend) error) error {
	b, _, err := a.attach(false)
	if err != nil {
		return err
	}
	defer b.Detach()
	return fn(b)
}
