// Package config provides configuration loading for cortexdx.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jscraik/cortexdx/internal/crypto"
)

// Config is the full cortexdx configuration.
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Logging LoggingConfig `koanf:"logging"`
	Server  ServerConfig  `koanf:"server"`
}

// StoreConfig configures the resolution pattern store.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to
	// ~/.config/cortexdx/patterns.db.
	Path string `koanf:"path"`

	// EncryptionKey is the hex-encoded AES-256 key for solution data.
	// When empty the key is taken from CORTEXDX_ENCRYPTION_KEY, or a
	// process-lifetime key is generated.
	EncryptionKey string `koanf:"encryption_key"`

	// PruneMaxAge, when positive, removes patterns unused for longer
	// than this window on startup.
	PruneMaxAge time.Duration `koanf:"prune_max_age"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "console" or "json".
	Format string `koanf:"format"`
}

// ServerConfig configures the MCP server identity.
type ServerConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// Validate checks configuration for errors that would only surface later
// at an inconvenient time.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if key := c.Store.EncryptionKey; key != "" {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return fmt.Errorf("store.encryption_key must be hex-encoded: %w", err)
		}
		if len(decoded) != crypto.KeySize {
			return fmt.Errorf("store.encryption_key must decode to %d bytes, got %d",
				crypto.KeySize, len(decoded))
		}
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	if c.Store.PruneMaxAge < 0 {
		return fmt.Errorf("store.prune_max_age must not be negative")
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Store.Path = filepath.Join(home, ".config", "cortexdx", "patterns.db")
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Server.Name == "" {
		cfg.Server.Name = "cortexdx"
	}
}
