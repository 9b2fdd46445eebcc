package duplicates

import (
	"bytes"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/clonefix/pkg/parser"
)

// Scope tells where a function definition lives.
type Scope string

const (
	ScopeModule Scope = "module"
	ScopeNested Scope = "nested"
)

// FunctionRecord is one function definition. Start and End are byte
// offsets into the source; the range includes decorators and any trailing
// comment lines that belong to the body.
type FunctionRecord struct {
	Name      string   `json:"name"`
	Params    []string `json:"params"`
	Start     int      `json:"start"`
	End       int      `json:"end"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Text      string   `json:"text"`
	Scope     Scope    `json:"scope"`
	Async     bool     `json:"async,omitempty"`

	// Def is the function_definition node; Outer is the decorated_definition
	// wrapping it, or Def itself.
	Def   *sitter.Node `json:"-"`
	Outer *sitter.Node `json:"-"`
}

// ModuleFunction is a FunctionRecord known to be defined at module scope.
// It can only be obtained from ExtractFunctions, so code that accepts a
// ModuleFunction never sees a nested definition.
type ModuleFunction struct {
	rec *FunctionRecord
}

// Record returns the underlying record.
func (m ModuleFunction) Record() *FunctionRecord { return m.rec }

// Name returns the function name.
func (m ModuleFunction) Name() string { return m.rec.Name }

// FunctionSet holds the functions of one source unit.
type FunctionSet struct {
	// Module lists every module-level definition in source order,
	// shadowed re-definitions included.
	Module []ModuleFunction
	// Nested lists methods and inner functions. They are never refactored.
	Nested []FunctionRecord

	byName map[string]int
}

// Lookup returns the definition a name resolves to. When a name is defined
// more than once the last definition wins.
func (s *FunctionSet) Lookup(name string) (ModuleFunction, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return ModuleFunction{}, false
	}
	return s.Module[idx], true
}

// Live returns the module functions that Lookup resolves to, in source order.
func (s *FunctionSet) Live() []ModuleFunction {
	live := make([]ModuleFunction, 0, len(s.byName))
	for i, fn := range s.Module {
		if s.byName[fn.Name()] == i {
			live = append(live, fn)
		}
	}
	return live
}

// Shadowed returns definitions replaced by a later one of the same name.
func (s *FunctionSet) Shadowed() []ModuleFunction {
	var out []ModuleFunction
	for i, fn := range s.Module {
		if s.byName[fn.Name()] != i {
			out = append(out, fn)
		}
	}
	return out
}

// ExtractFunctions collects the function definitions of a parsed file.
func ExtractFunctions(result *parser.ParseResult) *FunctionSet {
	set := &FunctionSet{byName: make(map[string]int)}
	root := result.Root()
	src := result.Source

	topLevel := make(map[uint32]bool)
	for i := range int(root.NamedChildCount()) {
		child := root.NamedChild(i)
		def := definitionOf(child)
		if def == nil {
			continue
		}
		topLevel[def.StartByte()] = true
		rec := newRecord(child, def, src, ScopeModule)
		set.byName[rec.Name] = len(set.Module)
		set.Module = append(set.Module, ModuleFunction{rec: rec})
	}

	parser.WalkTyped(root, src, func(node *sitter.Node, nodeType string, source []byte) bool {
		if nodeType != "function_definition" || topLevel[node.StartByte()] {
			return true
		}
		outer := node
		if p := node.Parent(); p != nil && p.Type() == "decorated_definition" {
			outer = p
		}
		set.Nested = append(set.Nested, *newRecord(outer, node, source, ScopeNested))
		return true
	})

	return set
}

// definitionOf returns the function_definition for a module statement, or nil.
func definitionOf(node *sitter.Node) *sitter.Node {
	switch node.Type() {
	case "function_definition":
		return node
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
			return def
		}
	}
	return nil
}

func newRecord(outer, def *sitter.Node, src []byte, scope Scope) *FunctionRecord {
	fn := parser.ExtractFunction(def, src)
	start := int(outer.StartByte())
	end := absorbTrailingComments(src, int(outer.EndByte()), int(def.StartPoint().Column))

	return &FunctionRecord{
		Name:      fn.Name,
		Params:    fn.Parameters,
		Start:     start,
		End:       end,
		StartLine: int(outer.StartPoint().Row) + 1,
		EndLine:   int(outer.StartPoint().Row) + 1 + bytes.Count(src[start:end], []byte("\n")),
		Text:      string(src[start:end]),
		Scope:     scope,
		Async:     parser.IsAsync(def),
		Def:       def,
		Outer:     outer,
	}
}

// absorbTrailingComments extends end over comment-only lines that follow the
// body and are indented deeper than the def column. Blank lines are taken
// only when such a comment follows them.
func absorbTrailingComments(src []byte, end, defColumn int) int {
	pos := end
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	for pos < len(src) {
		lineStart := pos + 1
		lineEnd := lineStart
		for lineEnd < len(src) && src[lineEnd] != '\n' {
			lineEnd++
		}
		line := string(src[lineStart:lineEnd])
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#") && indentWidth(line) > defColumn:
			end = lineEnd
		default:
			return end
		}
		pos = lineEnd
	}
	return end
}

// ExactDuplicate is a pair of same-name definitions with identical bodies.
type ExactDuplicate struct {
	Name  string `json:"name"`
	Lines [2]int `json:"lines"`
}

// ExactDuplicates compares the indentation-normalized bodies of module
// functions sharing a name and reports identical pairs.
func ExactDuplicates(set *FunctionSet, src []byte) []ExactDuplicate {
	byName := make(map[string][]ModuleFunction)
	var names []string
	for _, fn := range set.Module {
		if _, seen := byName[fn.Name()]; !seen {
			names = append(names, fn.Name())
		}
		byName[fn.Name()] = append(byName[fn.Name()], fn)
	}
	sort.Strings(names)

	var out []ExactDuplicate
	for _, name := range names {
		defs := byName[name]
		for i := 0; i < len(defs); i++ {
			for j := i + 1; j < len(defs); j++ {
				a := normalizedBody(defs[i].Record(), src)
				b := normalizedBody(defs[j].Record(), src)
				if a != "" && a == b {
					out = append(out, ExactDuplicate{
						Name:  name,
						Lines: [2]int{defs[i].Record().StartLine, defs[j].Record().StartLine},
					})
				}
			}
		}
	}
	return out
}

// normalizedBody returns the body text dedented with blank lines dropped.
func normalizedBody(rec *FunctionRecord, src []byte) string {
	body := rec.Def.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	// include the body's first line indentation
	start := int(body.StartByte())
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	lines := strings.Split(string(src[start:body.EndByte()]), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimRight(strings.ReplaceAll(l, "\t", "    "), " \r"))
		}
	}
	cut := commonIndent(kept)
	for i := range kept {
		kept[i] = kept[i][cut:]
	}
	return strings.Join(kept, "\n")
}
