// Config loading for the recipebox CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/recipebox/internal/paths"
	"github.com/mesh-intelligence/recipebox/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// envPrefix maps keys to environment variables, e.g. RECIPEBOX_DATA_DIR.
	envPrefix = "RECIPEBOX"
)

// Config keys.
const (
	cfgKeyBackend             = "backend"
	cfgKeyDataDir             = "data_dir"
	cfgKeyAutoMigrate         = "auto_migrate"
	cfgKeyBackupBeforeMigrate = "backup_before_migrate"
	cfgKeyBackupDir           = "backup_dir"
	cfgKeyBusyTimeoutMS       = "busy_timeout_ms"
	cfgKeyLogLevel            = "log_level"
)

const defaultLogLevel = "warn"

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	Backend             string `yaml:"backend"`
	DataDir             string `yaml:"data_dir,omitempty"`
	AutoMigrate         bool   `yaml:"auto_migrate"`
	BackupBeforeMigrate bool   `yaml:"backup_before_migrate"`
	BackupDir           string `yaml:"backup_dir,omitempty"`
	BusyTimeoutMS       int    `yaml:"busy_timeout_ms"`
	LogLevel            string `yaml:"log_level"`
}

func defaultConfigFile(dataDir string) configFile {
	return configFile{
		Backend:             types.BackendSQLite,
		DataDir:             dataDir,
		AutoMigrate:         true,
		BackupBeforeMigrate: true,
		BusyTimeoutMS:       types.DefaultBusyTimeoutMS,
		LogLevel:            defaultLogLevel,
	}
}

// loadConfig reads config.yaml from configDir using Viper. Values can be
// overridden by RECIPEBOX_* environment variables. A missing config.yaml is
// not an error; the defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyAutoMigrate, true)
	v.SetDefault(cfgKeyBackupBeforeMigrate, true)
	v.SetDefault(cfgKeyBusyTimeoutMS, types.DefaultBusyTimeoutMS)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. It reports whether a file was written.
func writeConfigIfMissing(configDir, dataDir string) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(defaultConfigFile(dataDir))
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# recipebox configuration. Keys can be overridden with RECIPEBOX_<KEY>.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// cookbookConfig builds the backend config from flags, config.yaml and the
// environment.
func (a *app) cookbookConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.config.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	backupDir, err := paths.ResolveBackupDir(a.config.GetString(cfgKeyBackupDir), dataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve backup dir: %w", err)
	}
	cfg := types.Config{
		Backend:             a.config.GetString(cfgKeyBackend),
		DataDir:             dataDir,
		SkipMigrate:         !a.config.GetBool(cfgKeyAutoMigrate),
		BackupBeforeMigrate: a.config.GetBool(cfgKeyBackupBeforeMigrate),
		BackupDir:           backupDir,
		BusyTimeoutMS:       a.config.GetInt(cfgKeyBusyTimeoutMS),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, userError(fmt.Errorf("invalid config: %w", err))
	}
	return cfg, nil
}
