package refactor

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/parser"
)

// signature is the call shape of a parameter list. Two functions can share
// a helper only when a call forwarding one's parameters fits the other.
type signature struct {
	positional  int
	keywordOnly int
	varArgs     bool
	varKwargs   bool
	async       bool
}

func shapeOf(rec *duplicates.FunctionRecord) signature {
	s := signature{async: rec.Async}
	kwOnly := false
	for _, p := range rec.Params {
		switch {
		case p == "/" || p == "":
		case p == "*":
			kwOnly = true
		case strings.HasPrefix(p, "**"):
			s.varKwargs = true
		case strings.HasPrefix(p, "*"):
			s.varArgs = true
			kwOnly = true
		case kwOnly:
			s.keywordOnly++
		default:
			s.positional++
		}
	}
	return s
}

type candidate struct {
	fn     duplicates.ModuleFunction
	tokens duplicates.TokenSequence
	shape  signature
}

func (c candidate) rec() *duplicates.FunctionRecord { return c.fn.Record() }

type scoredPair struct {
	i, j       int
	similarity float64
	sameShape  bool
}

type detection struct {
	cands  []candidate
	scores []scoredPair
	groups []Group
	skips  []Skip
}

// detect scores every pair of live module functions and groups the ones at
// or above threshold with compatible signatures.
func (r *Refactorer) detect(set *duplicates.FunctionSet, src []byte, threshold float64) *detection {
	d := &detection{}
	norm := duplicates.Normalizer{LiteralShapes: r.literalShapes}

	for _, fn := range set.Live() {
		rec := fn.Record()
		if reason := ineligible(rec, src); reason != "" {
			d.skips = append(d.skips, Skip{What: rec.Name, Reason: reason})
			continue
		}
		tokens, err := norm.Normalize(rec.Text)
		if err != nil {
			r.log.WithError(err).WithField("function", rec.Name).Warn("function excluded from comparison")
			d.skips = append(d.skips, Skip{What: rec.Name, Reason: err.Error()})
			continue
		}
		d.cands = append(d.cands, candidate{fn: fn, tokens: tokens, shape: shapeOf(rec)})
	}
	for _, fn := range set.Shadowed() {
		d.skips = append(d.skips, Skip{
			What:   fmt.Sprintf("%s (line %d)", fn.Name(), fn.Record().StartLine),
			Reason: "redefined later in the module",
		})
	}

	for i := 0; i < len(d.cands); i++ {
		for j := i + 1; j < len(d.cands); j++ {
			a, b := d.cands[i], d.cands[j]
			d.scores = append(d.scores, scoredPair{
				i:          i,
				j:          j,
				similarity: duplicates.Similarity(a.tokens, b.tokens, r.ngram),
				sameShape:  a.shape == b.shape,
			})
		}
	}

	d.groups = groupCandidates(d.cands, d.scores, threshold)
	return d
}

// ineligible returns why a function cannot join a group, or "".
func ineligible(rec *duplicates.FunctionRecord, src []byte) string {
	switch {
	case strings.HasPrefix(rec.Name, HelperPrefix) || strings.HasPrefix(rec.Name, ExtractedPrefix):
		return "generated helper"
	case isForwarder(rec, src):
		return "already forwards to a helper"
	case rec.Async && yields(rec.Def):
		return "async generator"
	}
	return ""
}

// groupCandidates forms the connected components of the duplicate graph.
// Members keep discovery order and groups are ordered by representative.
func groupCandidates(cands []candidate, scores []scoredPair, threshold float64) []Group {
	g := simple.NewUndirectedGraph()
	for i := range cands {
		g.AddNode(simple.Node(int64(i)))
	}
	minSim := make(map[[2]int]float64)
	for _, s := range scores {
		if !s.sameShape || !duplicates.Classify(s.similarity, threshold) {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(int64(s.i)), T: simple.Node(int64(s.j))})
		minSim[[2]int{s.i, s.j}] = s.similarity
	}

	var groups []Group
	for _, comp := range topo.ConnectedComponents(g) {
		if len(comp) < 2 {
			continue
		}
		ids := make([]int, len(comp))
		for i, n := range comp {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)

		group := Group{
			Helper:     HelperName(cands[ids[0]].tokens),
			Similarity: 1,
		}
		for _, id := range ids {
			rec := cands[id].rec()
			group.Members = append(group.Members, Member{Name: rec.Name, Line: rec.StartLine})
		}
		for k, sim := range minSim {
			if containsInt(ids, k[0]) && sim < group.Similarity {
				group.Similarity = sim
			}
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0].Line < groups[j].Members[0].Line
	})
	return groups
}

func containsInt(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

// statements returns the named children of a block, comments excluded.
func statements(block *sitter.Node) []*sitter.Node {
	if block == nil {
		return nil
	}
	var out []*sitter.Node
	for i := range int(block.NamedChildCount()) {
		if child := block.NamedChild(i); child.Type() != "comment" {
			out = append(out, child)
		}
	}
	return out
}

func isDocstring(stmt *sitter.Node) bool {
	if stmt == nil || stmt.Type() != "expression_statement" {
		return false
	}
	first := stmt.NamedChild(0)
	return first != nil && stmt.NamedChildCount() == 1 && first.Type() == "string"
}

// isForwarder reports whether a function body is a single call of a
// generated helper, the shape a wrapper rewrite leaves behind.
func isForwarder(rec *duplicates.FunctionRecord, src []byte) bool {
	stmts := statements(rec.Def.ChildByFieldName("body"))
	if len(stmts) > 0 && isDocstring(stmts[0]) {
		stmts = stmts[1:]
	}
	if len(stmts) != 1 {
		return false
	}
	stmt := stmts[0]
	if t := stmt.Type(); t != "return_statement" && t != "expression_statement" {
		return false
	}
	expr := stmt.NamedChild(0)
	if expr != nil && expr.Type() == "await" {
		expr = expr.NamedChild(0)
	}
	if expr == nil || expr.Type() != "call" {
		return false
	}
	callee := expr.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" {
		return false
	}
	name := parser.GetNodeText(callee, src)
	return strings.HasPrefix(name, HelperPrefix) || strings.HasPrefix(name, ExtractedPrefix)
}

// walkScope visits the nodes under a function body without entering
// nested functions, classes or lambdas.
func walkScope(def *sitter.Node, visit func(n *sitter.Node, nodeType string)) {
	body := def.ChildByFieldName("body")
	parser.WalkTyped(body, nil, func(n *sitter.Node, nodeType string, _ []byte) bool {
		switch nodeType {
		case "function_definition", "class_definition", "lambda":
			return false
		}
		visit(n, nodeType)
		return true
	})
}

// returnsValue reports whether the body returns a value or yields.
func returnsValue(def *sitter.Node) bool {
	found := false
	walkScope(def, func(n *sitter.Node, nodeType string) {
		switch nodeType {
		case "yield":
			found = true
		case "return_statement":
			for i := range int(n.NamedChildCount()) {
				if n.NamedChild(i).Type() != "comment" {
					found = true
				}
			}
		}
	})
	return found
}

func yields(def *sitter.Node) bool {
	found := false
	walkScope(def, func(_ *sitter.Node, nodeType string) {
		if nodeType == "yield" {
			found = true
		}
	})
	return found
}
