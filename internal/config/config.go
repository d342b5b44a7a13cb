package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Backup   BackupConfig
	UI       UIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// BackupConfig holds where pre-migration backups land.
type BackupConfig struct {
	Dir string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat     string
	CurrencySymbol string
	Locale         string
}

// Load reads configuration from file and env. Env var overrides use prefix
// BALANCEBOOK_.
func Load() (Config, error) {
	v := viper.New()

	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "balancebook")
	v.SetDefault("database.path", filepath.Join(dataDir, "balancebook.db"))
	v.SetDefault("backup.dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("ui.date_format", "02/01")
	v.SetDefault("ui.currency_symbol", "$")
	v.SetDefault("ui.locale", "en-AU")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BALANCEBOOK_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "balancebook"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BALANCEBOOK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if
// needed.
func Save(cfg Config) error {
	path := os.Getenv("BALANCEBOOK_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "balancebook", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("backup.dir", cfg.Backup.Dir)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("ui.currency_symbol", cfg.UI.CurrencySymbol)
	v.Set("ui.locale", cfg.UI.Locale)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
