// CLAUDE:SUMMARY YAML configuration for the archive tool: paths, enrichment tuning, serve address.
package archive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name looked up in the working
// directory when no explicit path is given.
const DefaultConfigFile = "plurkive.yml"

// Config holds the full tool configuration.
type Config struct {
	BackupPath string   `yaml:"backup_path"` // export directory root
	Database   string   `yaml:"database"`    // SQLite file path
	OG         OGConfig `yaml:"og"`
	Listen     string   `yaml:"listen"` // search API address
}

// OGConfig tunes the link enrichment pipeline.
type OGConfig struct {
	TimeoutSeconds int  `yaml:"timeout_seconds"` // per-attempt deadline
	Attempts       int  `yaml:"attempts"`        // fetch attempts per URL
	BackoffSeconds int  `yaml:"backoff_seconds"` // base retry backoff
	Limit          int  `yaml:"limit"`           // pending rows per run, 0 = all
	Browser        bool `yaml:"browser"`         // render pages in headless Chrome
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		BackupPath: "backup",
		Database:   "plurkive.db",
		OG: OGConfig{
			TimeoutSeconds: 30,
			Attempts:       3,
			BackoffSeconds: 2,
		},
		Listen: ":8080",
	}
}

// LoadConfig reads a YAML config file merged over DefaultConfig. A missing
// file is not an error: the defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the config to path, creating the canonical starting file for
// a new archive.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.OG.TimeoutSeconds < 0 || c.OG.Attempts < 0 || c.OG.BackoffSeconds < 0 || c.OG.Limit < 0 {
		return fmt.Errorf("og settings must not be negative")
	}
	return nil
}

// EnrichTimeout returns the per-attempt deadline as a duration.
func (c *Config) EnrichTimeout() time.Duration {
	return time.Duration(c.OG.TimeoutSeconds) * time.Second
}

// EnrichBackoff returns the base retry backoff as a duration.
func (c *Config) EnrichBackoff() time.Duration {
	return time.Duration(c.OG.BackoffSeconds) * time.Second
}
