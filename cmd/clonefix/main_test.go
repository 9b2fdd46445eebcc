package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/refactor"
)

const adders = `def f(a,b):
    return a+b

def g(x,y):
    return x+y
`

const distinct = `def f(a):
    return a

class C:
    pass
`

// run executes the CLI with progress and color disabled.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	argv := append([]string{"clonefix", "--no-color", "--no-progress"}, args...)
	err := newApp(&stdout, &stderr).Run(argv)
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"no args defaults to current dir", nil, []string{"."}},
		{"single path", []string{"/foo/bar"}, []string{"/foo/bar"}},
		{"multiple paths", []string{"/foo", "/bar"}, []string{"/foo", "/bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			app := &cli.App{Action: func(c *cli.Context) error {
				got = getPaths(c)
				return nil
			}}
			require.NoError(t, app.Run(append([]string{"clonefix"}, tt.args...)))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSingleFile(t *testing.T) {
	_, _, err := run(t, "refactor")
	assert.ErrorContains(t, err, "exactly one file")

	_, _, err = run(t, "debug", "a.py", "b.py")
	assert.ErrorContains(t, err, "exactly one file")
}

func TestDetect_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mod.py", adders)
	writeFile(t, dir, "other.py", distinct)

	stdout, _, err := run(t, "--format", "json", "detect", dir)
	require.NoError(t, err)

	var got duplicates.ProjectAnalysis
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Len(t, got.Files, 2)
	assert.Equal(t, 2, got.Summary.TotalFiles)
	assert.Equal(t, 1, got.Summary.FilesWithClones)
	for _, f := range got.Files {
		if filepath.Base(f.File) == "mod.py" {
			assert.NotEmpty(t, f.Pairs)
		} else {
			assert.Empty(t, f.Pairs)
		}
	}
}

func TestDetect_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "detect", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "mod.py")
	assert.Contains(t, stdout, "100.0%")
}

func TestDetect_NoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "nothing to see")

	stdout, stderr, err := run(t, "detect", dir)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No Python files found")
}

func TestRefactor_PrintsSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "refactor", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "def "+refactor.HelperPrefix)
	assert.Contains(t, stdout, "def f(a,b):")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, adders, string(data))
	assert.NoFileExists(t, path+".orig")
}

func TestRefactor_Write(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "refactor", "--write", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "rewrote")

	backup, err := os.ReadFile(path + ".orig")
	require.NoError(t, err)
	assert.Equal(t, adders, string(backup))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), refactor.HelperPrefix)
}

func TestRefactor_WriteNoBackup(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	_, _, err := run(t, "refactor", "--write", "--backup-suffix", "", path)
	require.NoError(t, err)
	assert.NoFileExists(t, path+".orig")
}

func TestRefactor_Collapse(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders+"\nprint(g(1, 2))\n")

	stdout, _, err := run(t, "refactor", "--mode", "collapse", path)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "def g(")
	assert.Contains(t, stdout, "print(f(1, 2))")
}

func TestRefactor_DiffOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "refactor", "--diff-only", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "@@ "+path+":1 @@")
	assert.Contains(t, stdout, "@@ "+path+":5 @@")
	assert.Contains(t, stdout, "-return x+y")
}

func TestRefactor_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "-f", "json", "refactor", path)
	require.NoError(t, err)

	var got struct {
		File      string          `json:"file"`
		Changed   bool            `json:"changed"`
		Written   bool            `json:"written"`
		Functions refactor.Result `json:"functions"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, path, got.File)
	assert.True(t, got.Changed)
	assert.False(t, got.Written)
	assert.Len(t, got.Functions.Groups, 1)
}

func TestRefactor_NoDuplicates(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", distinct)

	stdout, stderr, err := run(t, "refactor", "--write", path)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, refactor.NoDuplicates)
	assert.NoFileExists(t, path+".orig")
}

func TestRefactor_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", "def f(:\n    pass\n")

	_, _, err := run(t, "refactor", path)
	assert.ErrorIs(t, err, refactor.ErrSyntax)
}

func TestRefactor_InvalidMode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	_, _, err := run(t, "refactor", "--mode", "inline", path)
	assert.ErrorIs(t, err, refactor.ErrInvalidMode)
}

func TestSmells_JSON(t *testing.T) {
	var body strings.Builder
	body.WriteString("def long(a, b, c, d):\n")
	for i := 0; i < 20; i++ {
		body.WriteString("    a += 1\n")
	}
	body.WriteString("    return a\n")
	path := writeFile(t, t.TempDir(), "mod.py", body.String())

	stdout, _, err := run(t, "-f", "json", "smells", path)
	require.NoError(t, err)

	var got struct {
		Summary struct {
			LongMethods        int `json:"long_methods"`
			LongParameterLists int `json:"long_parameter_lists"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, 1, got.Summary.LongMethods)
	assert.Equal(t, 1, got.Summary.LongParameterLists)
}

func TestDebug_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "-f", "json", "debug", path)
	require.NoError(t, err)

	var got refactor.DebugDump
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Len(t, got.Functions, 2)
	require.Len(t, got.Duplicates, 1)
	assert.Equal(t, 1.0, got.Duplicates[0].Similarity)
}

func TestDebug_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mod.py", adders)

	stdout, _, err := run(t, "debug", "--threshold", "0.5", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "duplicate")
	assert.Contains(t, stdout, refactor.HelperPrefix)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clonefix.toml")

	stdout, _, err := run(t, "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[duplicates]")
	assert.Contains(t, string(data), "threshold = 0.76")

	_, _, err = run(t, "init", "--output", path)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = run(t, "init", "--output", path, "--force")
	assert.NoError(t, err)

	_, _, err = run(t, "--config", path, "config", "validate")
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clonefix.yaml", "duplicates:\n  threshold: 0.9\n")

	for _, as := range []string{"toml", "yaml", "json"} {
		t.Run(as, func(t *testing.T) {
			stdout, _, err := run(t, "--config", path, "config", "show", "--as", as)
			require.NoError(t, err)
			assert.Contains(t, stdout, "Configuration from: "+path)
			assert.Contains(t, stdout, "0.9")
		})
	}

	_, _, err := run(t, "config", "show", "--as", "ini")
	assert.ErrorContains(t, err, "unknown encoding")
}

func TestConfigValidate_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clonefix.toml", "[duplicates]\nthreshold = 3.0\n")

	_, stderr, err := run(t, "config", "validate", path)
	assert.Error(t, err)
	assert.Contains(t, stderr, "validation failed")
}

func TestMCPManifest(t *testing.T) {
	stdout, _, err := run(t, "mcp", "manifest")
	require.NoError(t, err)
	assert.Contains(t, stdout, "clonefix")
}

func TestVersionVariable(t *testing.T) {
	assert.NotEmpty(t, version)
}
