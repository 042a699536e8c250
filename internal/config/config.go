package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/pdxquery/internal/errors"
)

// Config represents the complete configuration for pdxquery
type Config struct {
	Game          string        `yaml:"game"`
	SchemaVersion int           `yaml:"schema_version"`
	Parser        ParserConfig  `yaml:"parser"`
	Session       SessionConfig `yaml:"session"`
	Logging       LoggingConfig `yaml:"logging"`
}

// ParserConfig controls the save text parser
type ParserConfig struct {
	Comments bool `yaml:"comments"`
}

// SessionConfig controls the serve command
type SessionConfig struct {
	BatchSize       int    `yaml:"batch_size"`
	SummarySection  string `yaml:"summary_section"`
	MetaSection     string `yaml:"meta_section"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// LoggingConfig controls diagnostic output on stderr
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Versions is the stamp carried by every document and response. It is built
// once at startup and never changes.
type Versions struct {
	SchemaVersion int    `json:"schema_version"`
	ToolVersion   string `json:"tool_version"`
	Game          string `json:"game"`
}

// CheckSchema returns an InvalidArgument error unless requested is the
// supported schema version.
func (v Versions) CheckSchema(requested int) error {
	if requested == v.SchemaVersion {
		return nil
	}
	return errors.NewInvalidArgumentError(
		fmt.Sprintf("Requested schema version %d is not supported. Supported: %d", requested, v.SchemaVersion),
		errors.ErrUnsupportedSchema,
	)
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Game:          "stellaris",
		SchemaVersion: 1,
		Parser: ParserConfig{
			Comments: true,
		},
		Session: SessionConfig{
			BatchSize:      100,
			SummarySection: "country",
			MetaSection:    "meta",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Versions returns the version stamp for this configuration.
func (c *Config) Versions(toolVersion string) Versions {
	return Versions{
		SchemaVersion: c.SchemaVersion,
		ToolVersion:   toolVersion,
		Game:          c.Game,
	}
}

// Validate checks the configuration for values no command can run with.
func (c *Config) Validate() error {
	if c.Game == "" {
		return errors.NewInvalidArgumentError("game must not be empty", nil)
	}
	if c.SchemaVersion < 1 {
		return errors.NewInvalidArgumentError(fmt.Sprintf("schema_version must be positive, got %d", c.SchemaVersion), nil)
	}
	if c.Session.SummarySection == "" || c.Session.MetaSection == "" {
		return errors.NewInvalidArgumentError("session section names must not be empty", nil)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.NewInvalidArgumentError(fmt.Sprintf("unknown logging format '%s'", c.Logging.Format), nil)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".pdxquery.yml", ".pdxquery.yaml", "pdxquery.yml", "pdxquery.yaml"}

	// Start from current directory
	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Overrides are command-line values that take precedence over the config
// file. Zero values leave the file or default value in place.
type Overrides struct {
	BatchSize       int
	MetricsTextfile string
	Debug           bool
}

// LoadConfigWithCLI loads the config file at configPath, or the nearest
// discovered config file when configPath is empty, and applies overrides.
func LoadConfigWithCLI(configPath string, overrides Overrides) (*Config, error) {
	cfg := NewConfig()

	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if overrides.BatchSize != 0 {
		cfg.Session.BatchSize = overrides.BatchSize
	}
	if overrides.MetricsTextfile != "" {
		cfg.Session.MetricsTextfile = overrides.MetricsTextfile
	}
	if overrides.Debug {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}
