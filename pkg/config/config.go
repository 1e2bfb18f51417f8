/*
Package config manages TOML config for poiserve.
*/
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/charmbracelet/log"
)

// Environment variables that override the file.
const (
	EnvDataDir  = "POISERVE_DATA_DIR"
	EnvDataset  = "POISERVE_DATASET"
	EnvLogLevel = "POISERVE_LOG_LEVEL"
	EnvLat      = "POISERVE_LAT"
	EnvLon      = "POISERVE_LON"
)

// Config holds the entire config structure
type Config struct {
	Server ServerConfig `toml:"server"`
	Index  IndexConfig  `toml:"index"`
	Data   DataConfig   `toml:"data"`
	CLI    CliConfig    `toml:"cli"`
}

// ServerConfig has IPC server options.
type ServerConfig struct {
	MaxResults  int     `toml:"max_results"`
	MaxQueryLen int     `toml:"max_query_len"`
	DefaultLat  float64 `toml:"default_lat"`
	DefaultLon  float64 `toml:"default_lon"`
}

// IndexConfig tunes the index.
type IndexConfig struct {
	CacheSize  int `toml:"cache_size"`
	MaxResults int `toml:"max_results"`
}

// DataConfig tells where datasets come from.
type DataConfig struct {
	Dir            string   `toml:"dir"`
	DefaultDataset string   `toml:"default_dataset"`
	HTTPTimeout    Duration `toml:"http_timeout"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int     `toml:"default_limit"`
	DefaultLat   float64 `toml:"default_lat"`
	DefaultLon   float64 `toml:"default_lon"`
	ShowLinks    bool    `toml:"show_links"`
}

// Duration is a time.Duration written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a Config with default values.
// The default position is the centre of Kyiv, matching the default dataset.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxResults:  50,
			MaxQueryLen: 120,
			DefaultLat:  50.4501,
			DefaultLon:  30.5234,
		},
		Index: IndexConfig{
			CacheSize:  1024,
			MaxResults: 50,
		},
		Data: DataConfig{
			Dir:            "data/",
			DefaultDataset: "kyiv-center",
			HTTPTimeout:    Duration{30 * time.Second},
		},
		CLI: CliConfig{
			DefaultLimit: 10,
			DefaultLat:   50.4501,
			DefaultLon:   30.5234,
			ShowLinks:    true,
		},
	}
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from -config flag
// 2. Default path: [config dir]/config.toml
// 3. Builtin defaults
// Environment overrides are applied on top in every case.
func LoadConfigWithPriority(customConfigPath, defaultPath string) (*Config, string) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err == nil {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return ApplyEnv(config), customConfigPath
			}
			log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}

	if defaultPath == "" {
		log.Warn("No default config path. Using built-in defaults...")
		return ApplyEnv(DefaultConfig()), ""
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return ApplyEnv(DefaultConfig()), ""
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return ApplyEnv(config), defaultPath
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file. Keys missing from the file keep their
// defaults; a file that does not decode cleanly is recovered section by
// section.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse picks every well-typed value out of a TOML file.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "index"); ok {
		extractIndexConfig(section, &config.Index)
	}
	if section, ok := utils.ExtractSection(tempConfig, "data"); ok {
		extractDataConfig(section, &config.Data)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_results"); ok {
		server.MaxResults = val
	}
	if val, ok := utils.ExtractInt64(data, "max_query_len"); ok {
		server.MaxQueryLen = val
	}
	if val, ok := utils.ExtractFloat(data, "default_lat"); ok {
		server.DefaultLat = val
	}
	if val, ok := utils.ExtractFloat(data, "default_lon"); ok {
		server.DefaultLon = val
	}
}

func extractIndexConfig(data map[string]any, index *IndexConfig) {
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		index.CacheSize = val
	}
	if val, ok := utils.ExtractInt64(data, "max_results"); ok {
		index.MaxResults = val
	}
}

func extractDataConfig(data map[string]any, dc *DataConfig) {
	if val, ok := utils.ExtractString(data, "dir"); ok {
		dc.Dir = val
	}
	if val, ok := utils.ExtractString(data, "default_dataset"); ok {
		dc.DefaultDataset = val
	}
	if val, ok := utils.ExtractDuration(data, "http_timeout"); ok {
		dc.HTTPTimeout = Duration{val}
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractFloat(data, "default_lat"); ok {
		cli.DefaultLat = val
	}
	if val, ok := utils.ExtractFloat(data, "default_lon"); ok {
		cli.DefaultLon = val
	}
	if val, ok := utils.ExtractBool(data, "show_links"); ok {
		cli.ShowLinks = val
	}
}

// ApplyEnv overrides config values from the environment. Invalid numbers
// are ignored with a warning.
func ApplyEnv(c *Config) *Config {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvDataset); v != "" {
		c.Data.DefaultDataset = v
	}
	if v, ok := envFloat(EnvLat); ok {
		c.Server.DefaultLat = v
		c.CLI.DefaultLat = v
	}
	if v, ok := envFloat(EnvLon); ok {
		c.Server.DefaultLon = v
		c.CLI.DefaultLon = v
	}
	return c
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warnf("Ignoring %s=%q: %v", key, raw, err)
		return 0, false
	}
	return v, true
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
