package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Rewrite modes.
const (
	ModeWrapper  = "wrapper"
	ModeCollapse = "collapse"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for clonefix.
type Config struct {
	// Clone detection settings
	Duplicates DuplicateConfig `koanf:"duplicates" toml:"duplicates" yaml:"duplicates" json:"duplicates"`

	// Rewrite settings
	Refactor RefactorConfig `koanf:"refactor" toml:"refactor" yaml:"refactor" json:"refactor"`

	// Long method / long parameter list thresholds
	Smells SmellConfig `koanf:"smells" toml:"smells" yaml:"smells" json:"smells"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude" yaml:"exclude" json:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" yaml:"output" json:"output"`

	Log LogConfig `koanf:"log" toml:"log" yaml:"log" json:"log"`
}

// DuplicateConfig configures the clone detector.
type DuplicateConfig struct {
	Threshold     float64 `koanf:"threshold" toml:"threshold" yaml:"threshold" json:"threshold"`
	NGramSize     int     `koanf:"ngram_size" toml:"ngram_size" yaml:"ngram_size" json:"ngram_size"`
	MinBlockLines int     `koanf:"min_block_lines" toml:"min_block_lines" yaml:"min_block_lines" json:"min_block_lines"`
	LiteralShapes bool    `koanf:"literal_shapes" toml:"literal_shapes" yaml:"literal_shapes" json:"literal_shapes"`
	MaxUnits      int     `koanf:"max_units" toml:"max_units" yaml:"max_units" json:"max_units"` // 0 = unlimited
}

// RefactorConfig configures the rewrite step.
type RefactorConfig struct {
	Mode         string `koanf:"mode" toml:"mode" yaml:"mode" json:"mode"` // wrapper, collapse
	InPlace      bool   `koanf:"in_place" toml:"in_place" yaml:"in_place" json:"in_place"`
	BackupSuffix string `koanf:"backup_suffix" toml:"backup_suffix" yaml:"backup_suffix" json:"backup_suffix"`
}

// SmellConfig holds the single-pass scanner thresholds.
type SmellConfig struct {
	LongMethodLines    int `koanf:"long_method_lines" toml:"long_method_lines" yaml:"long_method_lines" json:"long_method_lines"`
	LongParameterCount int `koanf:"long_parameter_count" toml:"long_parameter_count" yaml:"long_parameter_count" json:"long_parameter_count"`
}

// ExcludeConfig defines patterns for excluding files.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns" yaml:"patterns" json:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs" yaml:"dirs" json:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore" yaml:"gitignore" json:"gitignore"`
}

// OutputConfig defines output settings.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format" yaml:"format" json:"format"` // text, json, markdown, toon
	Color  bool   `koanf:"color" toml:"color" yaml:"color" json:"color"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level" yaml:"level" json:"level"`
	Format string `koanf:"format" toml:"format" yaml:"format" json:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Duplicates: DuplicateConfig{
			Threshold:     0.76,
			NGramSize:     3,
			MinBlockLines: 2,
			MaxUnits:      2000,
		},
		Refactor: RefactorConfig{
			Mode:         ModeWrapper,
			BackupSuffix: ".orig",
		},
		Smells: SmellConfig{
			LongMethodLines:    15,
			LongParameterCount: 3,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"test_*.py",
				"*_test.py",
			},
			Dirs: []string{
				".git",
				".venv",
				"venv",
				"node_modules",
				"__pycache__",
				".tox",
				"build",
				"dist",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads a specific file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs overrides the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

var configNames = []string{
	"clonefix.toml",
	"clonefix.yaml",
	"clonefix.yml",
	"clonefix.json",
	".clonefix.toml",
	".clonefix.yaml",
	".clonefix.yml",
	".clonefix.json",
}

// LoadConfig finds, loads and validates the configuration.
// A missing config file is not an error.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{dirs: []string{".", ".clonefix"}}
	for _, opt := range opts {
		opt(o)
	}

	path := o.path
	if path == "" {
		path = findConfig(o.dirs)
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

func findConfig(dirs []string) string {
	for _, dir := range dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	default:
		return toml.Parser()
	}
}

// Load loads configuration from a file, layered over the defaults.
// The file is checked against the config schema before it is merged.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := validateSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from the default locations or returns defaults.
func LoadOrDefault() *Config {
	result, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return result.Config
}

// Validate checks value ranges that the schema cannot express on its own.
func (c *Config) Validate() error {
	var errs []error

	if c.Duplicates.Threshold < 0 || c.Duplicates.Threshold > 1 {
		errs = append(errs, fmt.Errorf("duplicates.threshold must be in [0,1], got %v", c.Duplicates.Threshold))
	}
	if c.Duplicates.NGramSize < 1 {
		errs = append(errs, fmt.Errorf("duplicates.ngram_size must be positive, got %d", c.Duplicates.NGramSize))
	}
	if c.Duplicates.MinBlockLines < 1 {
		errs = append(errs, fmt.Errorf("duplicates.min_block_lines must be positive, got %d", c.Duplicates.MinBlockLines))
	}
	if c.Duplicates.MaxUnits < 0 {
		errs = append(errs, fmt.Errorf("duplicates.max_units must not be negative, got %d", c.Duplicates.MaxUnits))
	}
	switch c.Refactor.Mode {
	case ModeWrapper, ModeCollapse:
	default:
		errs = append(errs, fmt.Errorf("refactor.mode must be %q or %q, got %q", ModeWrapper, ModeCollapse, c.Refactor.Mode))
	}
	if c.Smells.LongMethodLines < 1 {
		errs = append(errs, fmt.Errorf("smells.long_method_lines must be positive, got %d", c.Smells.LongMethodLines))
	}
	if c.Smells.LongParameterCount < 0 {
		errs = append(errs, fmt.Errorf("smells.long_parameter_count must not be negative, got %d", c.Smells.LongParameterCount))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
