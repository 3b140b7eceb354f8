// File path: internal/orchestrator/config.go
package orchestrator

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

// Config controls the construction of the orchestrator and the defaults of
// the decode pipeline.
type Config struct {
	Catalog         catalog.Config `toml:"catalog" yaml:"catalog"`
	ArchiveDir      string         `toml:"archive_dir" yaml:"archive_dir"`
	CacheSize       int            `toml:"cache_size" yaml:"cache_size"`
	MaxRecordLength int            `toml:"max_record_length" yaml:"max_record_length"`
	Encoding        string         `toml:"encoding" yaml:"encoding"`
	NativeByteOrder string         `toml:"comp5_byte_order" yaml:"comp5_byte_order"`
	SyntheticRoot   string         `toml:"synthetic_root" yaml:"synthetic_root"`
	Workers         int            `toml:"workers" yaml:"workers"`
	Addr            string         `toml:"addr" yaml:"addr"`
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		Catalog:         catalog.Config{Path: filepath.Join("data", "copybooks.db")},
		ArchiveDir:      filepath.Join("data", "archive"),
		CacheSize:       64,
		MaxRecordLength: copybook.DefaultMaxRecordLength,
		Encoding:        "ascii",
		NativeByteOrder: "big",
		Workers:         runtime.NumCPU(),
		Addr:            ":8080",
	}
}

// LoadConfig builds a Config from defaults, the file named by COPYBOOK_CONFIG
// and environment variables, in increasing order of precedence.
func LoadConfig() (Config, error) {
	return LoadConfigWithFile(os.Getenv("COPYBOOK_CONFIG"))
}

// LoadConfigWithFile is LoadConfig with an explicit config file. An empty
// path skips the file.
func LoadConfigWithFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	catalogCfg, err := catalog.LoadOverrides()
	if err != nil {
		return Config{}, err
	}
	cfg.Catalog = cfg.Catalog.Merge(catalogCfg)
	if value := strings.TrimSpace(os.Getenv("COPYBOOK_ARCHIVE_DIR")); value != "" {
		cfg.ArchiveDir = value
	}
	if value := strings.TrimSpace(os.Getenv("COPYBOOK_ENCODING")); value != "" {
		cfg.Encoding = value
	}
	if value := strings.TrimSpace(os.Getenv("COPYBOOK_COMP5_BYTE_ORDER")); value != "" {
		cfg.NativeByteOrder = value
	}
	if value := strings.TrimSpace(os.Getenv("COPYBOOK_SYNTHETIC_ROOT")); value != "" {
		cfg.SyntheticRoot = value
	}
	if value := strings.TrimSpace(os.Getenv("COPYBOOK_ADDR")); value != "" {
		cfg.Addr = value
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"COPYBOOK_CACHE_SIZE", &cfg.CacheSize},
		{"COPYBOOK_MAX_RECORD_LENGTH", &cfg.MaxRecordLength},
		{"COPYBOOK_WORKERS", &cfg.Workers},
	}
	for _, item := range ints {
		value := strings.TrimSpace(os.Getenv(item.key))
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		*item.dst = n
	}
	return applyDefaults(cfg), nil
}

// LoadConfigFile decodes a TOML or YAML file, chosen by extension.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of override applied.
func (c Config) Merge(override Config) Config {
	result := c
	result.Catalog = c.Catalog.Merge(override.Catalog)
	strs := []struct {
		dst *string
		src string
	}{
		{&result.ArchiveDir, override.ArchiveDir},
		{&result.Encoding, override.Encoding},
		{&result.NativeByteOrder, override.NativeByteOrder},
		{&result.SyntheticRoot, override.SyntheticRoot},
		{&result.Addr, override.Addr},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(s.src); v != "" {
			*s.dst = v
		}
	}
	if override.CacheSize > 0 {
		result.CacheSize = override.CacheSize
	}
	if override.MaxRecordLength > 0 {
		result.MaxRecordLength = override.MaxRecordLength
	}
	if override.Workers > 0 {
		result.Workers = override.Workers
	}
	return result
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Catalog.Path) == "" {
		cfg.Catalog.Path = defaults.Catalog.Path
	}
	if strings.TrimSpace(cfg.ArchiveDir) == "" {
		cfg.ArchiveDir = defaults.ArchiveDir
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.MaxRecordLength <= 0 {
		cfg.MaxRecordLength = defaults.MaxRecordLength
	}
	if strings.TrimSpace(cfg.Encoding) == "" {
		cfg.Encoding = defaults.Encoding
	}
	if strings.TrimSpace(cfg.NativeByteOrder) == "" {
		cfg.NativeByteOrder = defaults.NativeByteOrder
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaults.Addr
	}
	return cfg
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return fmt.Errorf("catalog path required")
	}
	if strings.TrimSpace(c.ArchiveDir) == "" {
		return fmt.Errorf("archive dir required")
	}
	if _, err := copybook.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if _, err := ParseByteOrder(c.NativeByteOrder); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// ParseByteOrder accepts big or little.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "big", "big-endian", "be":
		return binary.BigEndian, nil
	case "little", "little-endian", "le":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", name)
	}
}
