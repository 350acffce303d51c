package platform

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the workspace configuration file name.
const ConfigFile = "contractflow.yaml"

// Config is the file and environment configuration of the CLI. Environment
// variables override the file.
type Config struct {
	DataDir    string        `yaml:"data_dir" env:"CONTRACTFLOW_DATA_DIR"`
	User       string        `yaml:"user" env:"CONTRACTFLOW_USER"`
	Adapter    string        `yaml:"adapter" env:"CONTRACTFLOW_ADAPTER"`
	Debounce   time.Duration `yaml:"debounce" env:"CONTRACTFLOW_DEBOUNCE"`
	WatchCache bool          `yaml:"watch_cache" env:"CONTRACTFLOW_WATCH_CACHE"`
}

// LoadConfig reads the YAML file at path, if any, and applies the
// environment on top. An empty path or a missing file yields the
// environment alone.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Debounce < 0 {
		return Config{}, fmt.Errorf("debounce must not be negative")
	}
	return cfg, nil
}

// Options translates the configuration into workspace options.
func (c Config) Options() []Option {
	var opts []Option
	if c.User != "" {
		opts = append(opts, WithUser(c.User))
	}
	if c.Adapter != "" {
		opts = append(opts, WithAdapter(c.Adapter))
	}
	if c.Debounce > 0 {
		opts = append(opts, WithAutosaveDelay(c.Debounce))
	}
	if c.WatchCache {
		opts = append(opts, WithCacheWatch(true))
	}
	return opts
}
