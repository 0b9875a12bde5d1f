// Package config resolves where a kiosk keeps its data and how it serves.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. AVTOMAT_DATA_DIR.
const Prefix = "avtomat"

// Config holds runtime settings. Command-line flags override these values.
type Config struct {
	DataDir   string `envconfig:"data_dir"`
	Addr      string `envconfig:"addr" default:":8080"`
	LogPath   string `envconfig:"log"`
	AdminUser string `envconfig:"admin_user" default:"admin"`
	MediaDir  string `envconfig:"media_dir"`
	Verbose   bool   `envconfig:"verbose"`
}

// Load reads the environment and fills in per-user defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	return &cfg, nil
}

// DefaultDataDir is ~/.avtomat.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".avtomat"), nil
}

// InventoryPath is the product store file.
func (c *Config) InventoryPath() string {
	return filepath.Join(c.DataDir, "inventory.sqlite3")
}

// AdminDBPath is the database holding operators and settings.
func (c *Config) AdminDBPath() string {
	return filepath.Join(c.DataDir, "admin.sqlite3")
}

// MediaPath is where uploaded product images are written.
func (c *Config) MediaPath() string {
	if c.MediaDir != "" {
		return c.MediaDir
	}
	return filepath.Join(c.DataDir, "media")
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
