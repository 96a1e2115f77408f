// Package config loads codegraph settings from .codegraph.yaml with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	// Scan controls which files enter the graph.
	Scan ScanConfig `mapstructure:"scan"`

	// Watch controls the file watcher.
	Watch WatchConfig `mapstructure:"watch"`

	// Server controls the HTTP/WebSocket server.
	Server ServerConfig `mapstructure:"server"`

	// Storage controls graph persistence.
	Storage StorageConfig `mapstructure:"storage"`
}

type ScanConfig struct {
	// Include restricts scanning to paths matching these globs. Empty
	// means everything under the root.
	Include []string `mapstructure:"include"`

	// Exclude drops paths matching these globs, on top of .gitignore and
	// the built-in ignore list.
	Exclude []string `mapstructure:"exclude"`

	// MaxFiles caps how many files one build may include. Excess files
	// are skipped, not an error.
	MaxFiles int `mapstructure:"max_files"`
}

type WatchConfig struct {
	// Debounce is the quiet period after the last file event before a
	// rebuild starts.
	Debounce time.Duration `mapstructure:"debounce"`
}

type ServerConfig struct {
	// Addr is the listen address for serve mode.
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	// Dir is the badger store directory, relative to the workspace root
	// unless absolute.
	Dir string `mapstructure:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxFiles: 1000,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7171",
		},
		Storage: StorageConfig{
			Dir: ".codegraph",
		},
	}
}

// Load reads configuration for the given workspace root. When path is
// non-empty it must name a config file; otherwise .codegraph.yaml is
// searched in the root and the home directory. A missing file is not an
// error, defaults apply.
func Load(root, path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("scan.max_files", cfg.Scan.MaxFiles)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("storage.dir", cfg.Storage.Dir)

	v.SetEnvPrefix("CODEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".codegraph")
		v.AddConfigPath(root)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file found, defaults apply.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// StorageDir resolves the storage directory against the workspace root.
func (c *Config) StorageDir(root string) string {
	if filepath.IsAbs(c.Storage.Dir) {
		return c.Storage.Dir
	}
	return filepath.Join(root, c.Storage.Dir)
}
