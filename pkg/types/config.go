package types

import "errors"

// Config holds backend selection and parameters for Cookbook.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// SkipMigrate leaves the schema untouched on Attach. By default Attach
	// upgrades the database to the head of the migration chain.
	SkipMigrate bool `json:"skip_migrate" yaml:"skip_migrate"`

	// BackupBeforeMigrate takes a backup into BackupDir before pending
	// migrations are applied on Attach.
	BackupBeforeMigrate bool   `json:"backup_before_migrate" yaml:"backup_before_migrate"`
	BackupDir           string `json:"backup_dir" yaml:"backup_dir"`

	// BusyTimeoutMS is how long a connection waits on a locked database.
	// Zero selects DefaultBusyTimeoutMS.
	BusyTimeoutMS int `json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultBusyTimeoutMS is used when Config.BusyTimeoutMS is zero.
const DefaultBusyTimeoutMS = 5000

// DatabaseFileName is the name of the SQLite file inside DataDir.
const DatabaseFileName = "recipebox.db"

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrBusyTimeoutInvalid = errors.New("busy timeout must not be negative")
	ErrBackupDirRequired  = errors.New("backup_before_migrate requires backup_dir")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.BusyTimeoutMS < 0 {
		return ErrBusyTimeoutInvalid
	}
	if c.BackupBeforeMigrate && c.BackupDir == "" {
		return ErrBackupDirRequired
	}
	return nil
}

// BusyTimeout returns the effective busy timeout in milliseconds.
func (c Config) BusyTimeout() int {
	if c.BusyTimeoutMS == 0 {
		return DefaultBusyTimeoutMS
	}
	return c.BusyTimeoutMS
}
