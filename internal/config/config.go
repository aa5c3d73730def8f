// Package config loads the application configuration and the category rule
// file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Permits  Permits  `mapstructure:"permits"`
	Cleaner  Cleaner  `mapstructure:"cleaner"`
	Web      Web      `mapstructure:"web"`
	Database Database `mapstructure:"database"`
}

// Permits configures per-class operation concurrency.
type Permits struct {
	Scan             int `mapstructure:"scan"`
	Clean            int `mapstructure:"clean"`
	EmptyTrash       int `mapstructure:"empty_trash"`
	MemOptimize      int `mapstructure:"mem_optimize"`
	MemOptimizeAdmin int `mapstructure:"mem_optimize_admin"`
	DashboardRefresh int `mapstructure:"dashboard_refresh"`
}

// Cleaner configures the storage cleaner.
type Cleaner struct {
	RulesPath        string        `mapstructure:"rules_path"`
	SizeCacheTTL     time.Duration `mapstructure:"size_cache_ttl"`
	SizeCacheEntries int           `mapstructure:"size_cache_entries"`
}

// Web configures the optional websocket push server.
type Web struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Database configures the backend SQLite store.
type Database struct {
	Path string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("permits.scan", 1)
	v.SetDefault("permits.clean", 2)
	v.SetDefault("permits.empty_trash", 1)
	v.SetDefault("permits.mem_optimize", 1)
	v.SetDefault("permits.mem_optimize_admin", 1)
	v.SetDefault("permits.dashboard_refresh", 2)

	v.SetDefault("cleaner.rules_path", "$HOME/.config/macos-optimizer/rules.json")
	v.SetDefault("cleaner.size_cache_ttl", 5*time.Minute)
	v.SetDefault("cleaner.size_cache_entries", 1000)

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.host", "127.0.0.1")
	v.SetDefault("web.port", 8720)

	v.SetDefault("database.path", "$HOME/.config/macos-optimizer/optimizer.db")
}

// Load reads configuration from the given file, falling back to well-known
// locations and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/macos-optimizer")
	}

	v.SetEnvPrefix("MACOS_OPTIMIZER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing config is fine; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
