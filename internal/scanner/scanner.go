// Package scanner finds the Python files to analyze under a set of paths.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/clonefix/pkg/config"
	"github.com/panbanda/clonefix/pkg/parser"
)

// Scanner finds Python source files.
type Scanner struct {
	config *config.Config
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Scan expands paths into Python files. Directories are walked with the
// configured exclusions applied; files named explicitly are kept whenever
// they are Python, excluded or not. The result is sorted and has no
// duplicates.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if parser.DetectLanguage(p) == parser.LangUnknown {
				return nil, fmt.Errorf("%w: %s", parser.ErrUnsupportedLanguage, p)
			}
			add(filepath.Clean(p))
			continue
		}
		found, err := s.ScanDir(p)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	sort.Strings(files)
	return files, nil
}

// findGitRoot returns the closest ancestor holding a .git directory, or "".
func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// matcher combines the configured patterns, excluded directory names and,
// when enabled, every .gitignore of the enclosing repository.
func (s *Scanner) matcher(absRoot string) (gitignore.Matcher, []string) {
	var patterns []gitignore.Pattern
	for _, p := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	for _, d := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(strings.TrimSuffix(d, "/")+"/", nil))
	}

	// Paths are matched relative to the repository root so nested
	// .gitignore domains line up.
	var prefix []string
	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(absRoot); gitRoot != "" {
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				patterns = append(patterns, gitPatterns...)
			}
			if rel, err := filepath.Rel(gitRoot, absRoot); err == nil && rel != "." {
				prefix = splitPath(rel)
			}
		}
	}
	return gitignore.NewMatcher(patterns), prefix
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}

// ScanDir walks root for Python files, skipping excluded paths and
// symlinks that resolve outside root.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}
	m, prefix := s.matcher(absRoot)
	excluded := func(rel string, isDir bool) bool {
		if rel == "." {
			return false
		}
		parts := append(append([]string{}, prefix...), splitPath(rel)...)
		return m.Match(parts, isDir)
	}

	files := make([]string, 0, 256)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(rel, false) {
			return nil
		}
		if parser.DetectLanguage(path) == parser.LangPython {
			files = append(files, path)
		}
		return nil
	})
	return files, walkErr
}

// isWithinRoot reports whether path lies inside root.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
