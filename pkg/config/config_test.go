package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Duplicates.Threshold != 0.76 {
		t.Errorf("Duplicates.Threshold = %v, want 0.76", cfg.Duplicates.Threshold)
	}
	if cfg.Duplicates.NGramSize != 3 {
		t.Errorf("Duplicates.NGramSize = %d, want 3", cfg.Duplicates.NGramSize)
	}
	if cfg.Duplicates.MinBlockLines != 2 {
		t.Errorf("Duplicates.MinBlockLines = %d, want 2", cfg.Duplicates.MinBlockLines)
	}
	if cfg.Refactor.Mode != ModeWrapper {
		t.Errorf("Refactor.Mode = %q, want wrapper", cfg.Refactor.Mode)
	}
	if cfg.Smells.LongMethodLines != 15 {
		t.Errorf("Smells.LongMethodLines = %d, want 15", cfg.Smells.LongMethodLines)
	}
	if cfg.Smells.LongParameterCount != 3 {
		t.Errorf("Smells.LongParameterCount = %d, want 3", cfg.Smells.LongParameterCount)
	}
	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should be true by default")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}

	require.NoError(t, cfg.Validate())
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "clonefix.toml",
			content: `[duplicates]
threshold = 0.9
ngram_size = 4

[refactor]
mode = "collapse"
`,
		},
		{
			name: "yaml",
			file: "clonefix.yaml",
			content: `duplicates:
  threshold: 0.9
  ngram_size: 4
refactor:
  mode: collapse
`,
		},
		{
			name:    "json",
			file:    "clonefix.json",
			content: `{"duplicates": {"threshold": 0.9, "ngram_size": 4}, "refactor": {"mode": "collapse"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, 0.9, cfg.Duplicates.Threshold)
			assert.Equal(t, 4, cfg.Duplicates.NGramSize)
			assert.Equal(t, ModeCollapse, cfg.Refactor.Mode)
			// untouched keys keep their defaults
			assert.Equal(t, 2, cfg.Duplicates.MinBlockLines)
			assert.Equal(t, 15, cfg.Smells.LongMethodLines)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold above one", "[duplicates]\nthreshold = 1.5\n"},
		{"unknown mode", "[refactor]\nmode = \"inline\"\n"},
		{"unknown key", "[duplicates]\ntreshold = 0.5\n"},
		{"unknown section", "[cache]\nenabled = true\n"},
		{"zero ngram", "[duplicates]\nngram_size = 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clonefix.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "error %v should wrap ErrInvalidConfig", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadConfig_Search(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, ".clonefix")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	path := filepath.Join(nested, "clonefix.yml")
	require.NoError(t, os.WriteFile(path, []byte("smells:\n  long_method_lines: 30\n"), 0o644))

	result, err := LoadConfig(WithSearchDirs(dir, nested))
	require.NoError(t, err)
	assert.Equal(t, path, result.Source)
	assert.Equal(t, 30, result.Config.Smells.LongMethodLines)

	empty, err := LoadConfig(WithSearchDirs(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, empty.Source)
	assert.Equal(t, DefaultConfig(), empty.Config)
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[output]\nformat = \"json\"\n"), 0o644))

	result, err := LoadConfig(WithPath(path))
	require.NoError(t, err)
	assert.Equal(t, "json", result.Config.Output.Format)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duplicates.Threshold = -0.1
	cfg.Refactor.Mode = "rename"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "duplicates.threshold")
	assert.Contains(t, err.Error(), "refactor.mode")
}
