// File path: internal/catalog/config.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config controls the SQLite catalog connection pool.
type Config struct {
	Path string `json:"path" toml:"path" yaml:"path"`

	MaxOpenConns int `json:"max_open_conns" toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns" toml:"max_idle_conns" yaml:"max_idle_conns"`

	ConnMaxLifetime       time.Duration `json:"-" toml:"-" yaml:"-"`
	ConnMaxLifetimeString string        `json:"conn_max_lifetime" toml:"conn_max_lifetime" yaml:"conn_max_lifetime"`

	BusyTimeout       time.Duration `json:"-" toml:"-" yaml:"-"`
	BusyTimeoutString string        `json:"busy_timeout" toml:"busy_timeout" yaml:"busy_timeout"`
}

// Merge returns c with every non-zero field of override applied.
func (c Config) Merge(override Config) Config {
	result := c
	if path := strings.TrimSpace(override.Path); path != "" {
		result.Path = path
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.MaxIdleConns > 0 {
		result.MaxIdleConns = override.MaxIdleConns
	}
	if override.ConnMaxLifetime > 0 {
		result.ConnMaxLifetime = override.ConnMaxLifetime
	}
	if s := strings.TrimSpace(override.ConnMaxLifetimeString); s != "" {
		result.ConnMaxLifetimeString = s
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	if s := strings.TrimSpace(override.BusyTimeoutString); s != "" {
		result.BusyTimeoutString = s
	}
	return result
}

// LoadConfig reads COPYBOOK_CATALOG_CONFIG (JSON, TOML or YAML) and then the
// COPYBOOK_CATALOG_* variables, in that order of precedence.
func LoadConfig() (Config, error) {
	cfg, err := LoadOverrides()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOverrides is LoadConfig without defaults, for merging over settings
// read elsewhere.
func LoadOverrides() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("COPYBOOK_CATALOG_CONFIG")); path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg.Merge(envCfg), nil
}

func (c *Config) applyDefaults() error {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 && c.ConnMaxLifetimeString != "" {
		parsed, err := time.ParseDuration(c.ConnMaxLifetimeString)
		if err != nil {
			return fmt.Errorf("catalog: parse conn_max_lifetime: %w", err)
		}
		c.ConnMaxLifetime = parsed
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 15 * time.Minute
	}
	if c.BusyTimeout <= 0 && c.BusyTimeoutString != "" {
		parsed, err := time.ParseDuration(c.BusyTimeoutString)
		if err != nil {
			return fmt.Errorf("catalog: parse busy_timeout: %w", err)
		}
		c.BusyTimeout = parsed
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	return nil
}

// LoadConfigFile decodes a catalog config file; the format follows the
// extension (.toml, .yaml/.yml, anything else JSON).
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("catalog: read config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("catalog: parse config %s: %w", path, err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("COPYBOOK_CATALOG_PATH")); path != "" {
		cfg.Path = path
	}
	if open := strings.TrimSpace(os.Getenv("COPYBOOK_CATALOG_MAX_OPEN_CONNS")); open != "" {
		value, err := strconv.Atoi(open)
		if err != nil {
			return Config{}, fmt.Errorf("catalog: parse COPYBOOK_CATALOG_MAX_OPEN_CONNS: %w", err)
		}
		cfg.MaxOpenConns = value
	}
	if busy := strings.TrimSpace(os.Getenv("COPYBOOK_CATALOG_BUSY_TIMEOUT")); busy != "" {
		cfg.BusyTimeoutString = busy
	}
	return cfg, nil
}
