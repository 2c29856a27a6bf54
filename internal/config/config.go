// Package config loads pharmsync's own configuration: store locations,
// batch size, file paths and log settings.
//
// Values come from an optional YAML file (default .pharmsync/config.yaml),
// overridable through PHARMSYNC_* environment variables. The tenant
// identity artifact is deliberately separate (see the tenant package); it
// is owned by deployment tooling, not by this file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultDataDir is the directory holding the local store, sync state and
// tenant config unless overridden.
const DefaultDataDir = ".pharmsync"

// DefaultBatchSize bounds one fetch/upsert batch.
const DefaultBatchSize = 500

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the resolved application configuration.
type Config struct {
	DataDir string

	// LocalPath is the embedded local store file.
	LocalPath string
	// RemoteURL is the central store: a libsql:// URL or a file path.
	RemoteURL string
	// RemoteAuthToken authenticates against a hosted central store.
	RemoteAuthToken string

	// StateFile holds the durable sync cursors.
	StateFile string
	// TenantFile is the tenant identity artifact.
	TenantFile string

	BatchSize int

	Log LogConfig
}

// Load reads configuration from path. An empty path falls back to
// .pharmsync/config.yaml and tolerates its absence; an explicit path that
// cannot be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PHARMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("sync.batch_size", DefaultBatchSize)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDataDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	dataDir := v.GetString("data_dir")
	cfg := &Config{
		DataDir:         dataDir,
		LocalPath:       v.GetString("local.path"),
		RemoteURL:       v.GetString("remote.url"),
		RemoteAuthToken: v.GetString("remote.auth_token"),
		StateFile:       v.GetString("sync.state_file"),
		TenantFile:      v.GetString("tenant.config_file"),
		BatchSize:       v.GetInt("sync.batch_size"),
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}

	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(dataDir, "local.db")
	}
	if cfg.RemoteURL == "" {
		cfg.RemoteURL = filepath.Join(dataDir, "remote.db")
	}
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(dataDir, "last_sync.json")
	}
	if cfg.TenantFile == "" {
		cfg.TenantFile = filepath.Join(dataDir, "pharmacy.json")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return cfg, nil
}
