package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestNew(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("New() returned nil")
	}
	if p.parser == nil {
		t.Error("parser field is nil")
	}
	p.Close()
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"script.py", LangPython},
		{"module.pyw", LangPython},
		{"types.pyi", LangPython},
		{"pkg/Upper.PY", LangPython},
		{"main.go", LangUnknown},
		{"file.txt", LangUnknown},
		{"Makefile", LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DetectLanguage(tt.path); got != tt.want {
				t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	pyPath := filepath.Join(dir, "mod.py")
	if err := os.WriteFile(pyPath, []byte("def f(a):\n    return a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New()
	defer p.Close()

	result, err := p.ParseFile(pyPath)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	defer result.Close()

	if result.Language != LangPython {
		t.Errorf("Language = %v, want python", result.Language)
	}
	if result.Root().Type() != "module" {
		t.Errorf("root type = %q, want module", result.Root().Type())
	}

	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ParseFile(txtPath); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("ParseFile(.txt) error = %v, want ErrUnsupportedLanguage", err)
	}

	if _, err := p.ParseFile(filepath.Join(dir, "missing.py")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHasErrors(t *testing.T) {
	p := New()
	defer p.Close()

	clean, err := p.Parse([]byte("x = 1\ny = x + 2\n"), "clean.py")
	if err != nil {
		t.Fatal(err)
	}
	if clean.HasErrors() {
		t.Error("clean source reported errors")
	}
	if line := clean.FirstError(); line != 0 {
		t.Errorf("FirstError() = %d, want 0", line)
	}

	broken, err := p.Parse([]byte("x = 1\ndef f(:\n    pass\n"), "broken.py")
	if err != nil {
		t.Fatal(err)
	}
	if !broken.HasErrors() {
		t.Error("broken source reported no errors")
	}
	if line := broken.FirstError(); line != 2 {
		t.Errorf("FirstError() = %d, want 2", line)
	}
}

func TestGetFunctions(t *testing.T) {
	src := []byte(`def outer(a, b=1, *args, c, **kw):
    def inner(x: int, y: str = "s"):
        return x
    return inner

async def fetch(self, /, url, *, timeout):
    pass
`)
	p := New()
	defer p.Close()

	result, err := p.Parse(src, "funcs.py")
	if err != nil {
		t.Fatal(err)
	}

	fns := GetFunctions(result)
	if len(fns) != 3 {
		t.Fatalf("got %d functions, want 3", len(fns))
	}

	tests := []struct {
		name   string
		params []string
		lines  int
		async  bool
	}{
		{"outer", []string{"a", "b", "*args", "c", "**kw"}, 4, false},
		{"inner", []string{"x", "y"}, 2, false},
		{"fetch", []string{"self", "/", "url", "*", "timeout"}, 2, true},
	}

	for i, tt := range tests {
		fn := fns[i]
		if fn.Name != tt.name {
			t.Errorf("fns[%d].Name = %q, want %q", i, fn.Name, tt.name)
		}
		if len(fn.Parameters) != len(tt.params) {
			t.Errorf("%s params = %v, want %v", tt.name, fn.Parameters, tt.params)
			continue
		}
		for j := range tt.params {
			if fn.Parameters[j] != tt.params[j] {
				t.Errorf("%s param[%d] = %q, want %q", tt.name, j, fn.Parameters[j], tt.params[j])
			}
		}
		if fn.LineCount() != tt.lines {
			t.Errorf("%s LineCount() = %d, want %d", tt.name, fn.LineCount(), tt.lines)
		}
		if IsAsync(fn.Node) != tt.async {
			t.Errorf("%s IsAsync() = %v, want %v", tt.name, IsAsync(fn.Node), tt.async)
		}
		if fn.Body == nil {
			t.Errorf("%s has nil body", tt.name)
		}
	}
}

func TestWalkTyped(t *testing.T) {
	src := []byte("a = 1\nb = 2\nprint(a, b)\n")
	p := New()
	defer p.Close()

	result, err := p.Parse(src, "walk.py")
	if err != nil {
		t.Fatal(err)
	}

	counts := map[string]int{}
	WalkTyped(result.Root(), result.Source, func(_ *sitter.Node, nodeType string, _ []byte) bool {
		counts[nodeType]++
		return true
	})
	if counts["assignment"] != 2 {
		t.Errorf("assignment count = %d, want 2", counts["assignment"])
	}
	if counts["call"] != 1 {
		t.Errorf("call count = %d, want 1", counts["call"])
	}

	calls := FindNodesByType(result.Root(), result.Source, "call")
	if len(calls) != 1 {
		t.Fatalf("FindNodesByType(call) = %d nodes, want 1", len(calls))
	}
	if got := GetNodeText(calls[0], result.Source); got != "print(a, b)" {
		t.Errorf("GetNodeText() = %q", got)
	}
}

func TestGetNodeText_Nil(t *testing.T) {
	if got := GetNodeText(nil, []byte("abc")); got != "" {
		t.Errorf("GetNodeText(nil) = %q, want empty", got)
	}
}
