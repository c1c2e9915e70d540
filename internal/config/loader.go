package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelhost/pkg/types"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// StateDir holds the fast-store file and default cache locations.
	StateDir string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`
	// CacheDir is where the engine materializes model weights.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	// PartitionsDB is the structured-tier SQLite database path.
	PartitionsDB string `json:"partitions_db" yaml:"partitions_db" toml:"partitions_db"`
	// AutoRestore re-loads the persisted active model at startup.
	AutoRestore bool `json:"auto_restore" yaml:"auto_restore" toml:"auto_restore"`
	LogLevel    string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// ExtraModels are appended to the built-in catalog.
	ExtraModels []types.ModelDescriptor `json:"extra_models" yaml:"extra_models" toml:"extra_models"`
	// CORS settings (opt-in).
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
