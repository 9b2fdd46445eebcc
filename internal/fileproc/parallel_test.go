package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/panbanda/clonefix/pkg/parser"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestMapFiles(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		createTestFile(t, tmpDir, "a.py", "def a():\n    pass\n"),
		createTestFile(t, tmpDir, "b.py", "def b():\n    pass\n"),
		createTestFile(t, tmpDir, "c.py", "x = 1\n"),
	}

	results, errs := MapFiles(context.Background(), files, func(p *parser.Parser, path string) (string, error) {
		res, err := p.ParseFile(path)
		if err != nil {
			return "", err
		}
		defer res.Close()
		return filepath.Base(path), nil
	})

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{"a.py", "b.py", "c.py"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %q, want %q (input order)", i, results[i], want[i])
		}
	}
}

func TestMapFiles_EmptyFileList(t *testing.T) {
	results, errs := MapFiles(context.Background(), nil, func(p *parser.Parser, path string) (string, error) {
		return path, nil
	})
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
	if errs != nil {
		t.Errorf("expected nil errors, got %v", errs)
	}
}

func TestMapFilesN_ErrorsCollected(t *testing.T) {
	files := []string{"ok1.py", "bad.py", "ok2.py", "worse.py"}
	boom := errors.New("boom")

	results, errs := MapFilesN(context.Background(), files, 2, func(p *parser.Parser, path string) (string, error) {
		if path == "bad.py" || path == "worse.py" {
			return "", fmt.Errorf("parse: %w", boom)
		}
		return path, nil
	}, nil)

	if len(results) != 2 || results[0] != "ok1.py" || results[1] != "ok2.py" {
		t.Errorf("results = %v, want [ok1.py ok2.py]", results)
	}
	if errs == nil || len(errs.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	for _, e := range errs.Errors {
		if !errors.Is(e, boom) {
			t.Errorf("error for %s does not wrap cause: %v", e.Path, e.Err)
		}
	}
	if got := errs.Error(); got == "" || got == "no errors" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestMapFilesN_Progress(t *testing.T) {
	files := make([]string, 25)
	for i := range files {
		files[i] = fmt.Sprintf("f%d.py", i)
	}

	var ticks atomic.Int32
	results, errs := MapFilesN(context.Background(), files, 4, func(p *parser.Parser, path string) (int, error) {
		return len(path), nil
	}, func() { ticks.Add(1) })

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != len(files) {
		t.Errorf("got %d results, want %d", len(results), len(files))
	}
	if got := ticks.Load(); got != int32(len(files)) {
		t.Errorf("progress called %d times, want %d", got, len(files))
	}
}

func TestMapFilesN_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results, errs := MapFilesN(ctx, []string{"a.py", "b.py", "c.py"}, 1, func(p *parser.Parser, path string) (string, error) {
		calls.Add(1)
		return path, nil
	}, nil)

	if calls.Load() != 0 || len(results) != 0 {
		t.Errorf("expected no work after cancellation, got %d calls and %v", calls.Load(), results)
	}
	if errs == nil || len(errs.Errors) != 3 {
		t.Fatalf("expected 3 cancellation errors, got %v", errs)
	}
	for _, e := range errs.Errors {
		if !errors.Is(e, context.Canceled) {
			t.Errorf("%s: got %v, want context.Canceled", e.Path, e.Err)
		}
	}
}

func TestProcessingError(t *testing.T) {
	e := ProcessingError{Path: "x.py", Err: os.ErrNotExist}
	if e.Error() != "x.py: file does not exist" {
		t.Errorf("Error() = %q", e.Error())
	}
	if !errors.Is(e, os.ErrNotExist) {
		t.Error("expected Unwrap to expose the cause")
	}

	var errs ProcessingErrors
	if errs.HasErrors() || errs.Error() != "no errors" {
		t.Error("empty collection should report no errors")
	}
}
