package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Language represents a supported programming language.
type Language string

const (
	LangPython  Language = "python"
	LangUnknown Language = "unknown"
)

// ErrUnsupportedLanguage is returned when a file is not Python source.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Parser wraps a tree-sitter parser configured for Python.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// ParseFile parses a source file and returns the AST.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	if DetectLanguage(path) == LangUnknown {
		return nil, fmt.Errorf("%w for file: %s", ErrUnsupportedLanguage, path)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return p.Parse(source, path)
}

// Parse parses Python source code.
func (p *Parser) Parse(source []byte, path string) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	return &ParseResult{
		Tree:     tree,
		Language: LangPython,
		Source:   source,
		Path:     path,
	}, nil
}

// Root returns the module node of the parsed tree.
func (r *ParseResult) Root() *sitter.Node {
	return r.Tree.RootNode()
}

// HasErrors reports whether the tree contains ERROR or MISSING nodes.
func (r *ParseResult) HasErrors() bool {
	return r.Tree.RootNode().HasError()
}

// FirstError returns the 1-based line of the first ERROR or MISSING node,
// or 0 when the tree is clean.
func (r *ParseResult) FirstError() uint32 {
	var line uint32
	Walk(r.Root(), r.Source, func(node *sitter.Node, _ []byte) bool {
		if line != 0 {
			return false
		}
		if node.IsError() || node.IsMissing() {
			line = node.StartPoint().Row + 1
			return false
		}
		return node.HasError()
	})
	return line
}

// Close releases the tree.
func (r *ParseResult) Close() {
	if r != nil && r.Tree != nil {
		r.Tree.Close()
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw", ".pyi":
		return LangPython
	default:
		return LangUnknown
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// TypedNodeVisitor visits AST nodes with pre-cached node type to avoid CGO overhead.
type TypedNodeVisitor func(node *sitter.Node, nodeType string, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// WalkTyped traverses the AST with cached node types to reduce CGO overhead.
func WalkTyped(node *sitter.Node, source []byte, visitor TypedNodeVisitor) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if !visitor(node, nodeType, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		WalkTyped(node.Child(i), source, visitor)
	}
}

// FindNodes returns all nodes matching a predicate.
func FindNodes(root *sitter.Node, source []byte, predicate func(*sitter.Node) bool) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, source []byte) bool {
		if predicate(node) {
			results = append(results, node)
		}
		return true
	})
	return results
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	return FindNodes(root, source, func(n *sitter.Node) bool {
		return n.Type() == nodeType
	})
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// FunctionNode represents a parsed function.
type FunctionNode struct {
	Name       string
	StartLine  uint32
	EndLine    uint32
	Parameters []string
	Node       *sitter.Node
	Body       *sitter.Node
}

// LineCount returns the number of lines the definition spans.
func (f FunctionNode) LineCount() int {
	return int(f.EndLine-f.StartLine) + 1
}

// GetFunctions extracts every function definition, nested ones included.
func GetFunctions(result *ParseResult) []FunctionNode {
	var functions []FunctionNode
	WalkTyped(result.Root(), result.Source, func(node *sitter.Node, nodeType string, source []byte) bool {
		if nodeType == "function_definition" {
			functions = append(functions, ExtractFunction(node, source))
		}
		return true
	})
	return functions
}

// ExtractFunction extracts function details from a function_definition node.
func ExtractFunction(node *sitter.Node, source []byte) FunctionNode {
	fn := FunctionNode{
		StartLine: node.StartPoint().Row + 1,
		EndLine:   node.EndPoint().Row + 1,
		Node:      node,
		Body:      node.ChildByFieldName("body"),
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		fn.Name = GetNodeText(nameNode, source)
	}
	fn.Parameters = ParameterNames(node.ChildByFieldName("parameters"), source)
	return fn
}

// ParameterNames returns the declared parameter names in order, including
// splat markers ("*args", "**kwargs"). A bare "*" separator and "/" are kept
// so callers can tell positional from keyword-only parameters.
func ParameterNames(params *sitter.Node, source []byte) []string {
	if params == nil {
		return nil
	}
	names := make([]string, 0, params.NamedChildCount())
	for i := range int(params.NamedChildCount()) {
		child := params.NamedChild(i)
		switch child.Type() {
		case "identifier":
			names = append(names, GetNodeText(child, source))
		case "default_parameter", "typed_default_parameter":
			names = append(names, GetNodeText(child.ChildByFieldName("name"), source))
		case "typed_parameter":
			names = append(names, typedParameterName(child, source))
		case "list_splat_pattern":
			names = append(names, "*"+firstIdentifier(child, source))
		case "dictionary_splat_pattern":
			names = append(names, "**"+firstIdentifier(child, source))
		case "keyword_separator":
			names = append(names, "*")
		case "positional_separator":
			names = append(names, "/")
		}
	}
	return names
}

func typedParameterName(node *sitter.Node, source []byte) string {
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			return GetNodeText(child, source)
		case "list_splat_pattern":
			return "*" + firstIdentifier(child, source)
		case "dictionary_splat_pattern":
			return "**" + firstIdentifier(child, source)
		}
	}
	return ""
}

func firstIdentifier(node *sitter.Node, source []byte) string {
	for i := range int(node.NamedChildCount()) {
		if child := node.NamedChild(i); child.Type() == "identifier" {
			return GetNodeText(child, source)
		}
	}
	return ""
}

// IsAsync reports whether a function_definition node is declared async.
func IsAsync(node *sitter.Node) bool {
	if node == nil || node.ChildCount() == 0 {
		return false
	}
	return node.Child(0).Type() == "async"
}
