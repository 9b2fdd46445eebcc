package refactor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/parser"
)

// transferKeywords leave the block early or bind names at the wrong scope,
// so a block using one cannot move into a helper.
var transferKeywords = map[string]bool{
	"return": true, "break": true, "continue": true, "yield": true,
	"raise": true, "global": true, "nonlocal": true, "await": true,
	"async": true, "import": true, "def": true, "class": true,
}

// builtins are never passed as helper arguments.
var builtins = map[string]bool{
	"abs": true, "all": true, "any": true, "ascii": true, "bin": true, "bool": true,
	"bytearray": true, "bytes": true, "callable": true, "chr": true, "classmethod": true,
	"compile": true, "complex": true, "delattr": true, "dict": true, "dir": true,
	"divmod": true, "enumerate": true, "eval": true, "exec": true, "filter": true,
	"float": true, "format": true, "frozenset": true, "getattr": true, "globals": true,
	"hasattr": true, "hash": true, "help": true, "hex": true, "id": true, "input": true,
	"int": true, "isinstance": true, "issubclass": true, "iter": true, "len": true,
	"list": true, "locals": true, "map": true, "max": true, "memoryview": true,
	"min": true, "next": true, "object": true, "oct": true, "open": true, "ord": true,
	"pow": true, "print": true, "property": true, "range": true, "repr": true,
	"reversed": true, "round": true, "set": true, "setattr": true, "slice": true,
	"sorted": true, "staticmethod": true, "str": true, "sum": true, "super": true,
	"tuple": true, "type": true, "vars": true, "zip": true,
	"Exception": true, "ValueError": true, "TypeError": true, "KeyError": true,
	"IndexError": true, "RuntimeError": true, "NotImplemented": true, "Ellipsis": true,
}

// occurrence is one duplicated block located in the syntax tree.
type occurrence struct {
	start  int // offset of the first line
	end    int // offset past the last line's content
	indent string
	stmts  []*sitter.Node
	text   string
	flow   *dataflow
	after  map[string]bool // names read later in the enclosing statement
}

type blockGroup struct {
	name string
	occ  []*occurrence
}

// RefactorBlocks detects duplicated blocks in src with the Refactorer's
// detection settings and extracts the usable ones.
func (r *Refactorer) RefactorBlocks(src []byte) (*Result, error) {
	detector := duplicates.New(
		duplicates.WithThreshold(r.threshold),
		duplicates.WithNGramSize(r.ngram),
		duplicates.WithMinBlockLines(r.minLines),
		duplicates.WithLiteralShapes(r.literalShapes),
		duplicates.WithMaxUnits(r.maxUnits),
		duplicates.WithLogger(r.log),
	)
	analysis, err := detector.AnalyzeSource("", src)
	if err != nil {
		return unchanged(src), err
	}
	return r.ExtractBlocks(src, analysis.Pairs)
}

// ExtractBlocks extracts duplicated statement blocks into helpers. Each pair
// needs identical token sequences and no control transfer. Inputs are the
// names a block reads before assigning, outputs the names it assigns that
// the enclosing top-level statement reads afterwards. Pairs failing a check
// are skipped and reported in Result.Skipped.
func (r *Refactorer) ExtractBlocks(src []byte, pairs []duplicates.Pair) (*Result, error) {
	psr := parser.New()
	defer psr.Close()
	res, err := parse(psr, src)
	if err != nil {
		return unchanged(src), err
	}
	defer res.Close()

	root := res.Root()
	module := moduleNames(root, src)
	lines := lineOffsets(src)

	var skips []Skip
	skip := func(what, reason string) {
		r.log.WithFields(logrus.Fields{"block": what, "reason": reason}).Info("block pair skipped")
		skips = append(skips, Skip{What: what, Reason: reason})
	}

	var groups []*blockGroup
	byName := make(map[string]*blockGroup)
	placed := make(map[int]bool)

	for _, p := range pairs {
		what := fmt.Sprintf("lines %d-%d and %d-%d", p.Block1.LineNumber, p.Block1.EndLine, p.Block2.LineNumber, p.Block2.EndLine)
		if reason := pairRejection(p); reason != "" {
			skip(what, reason)
			continue
		}

		name := ExtractedName(p.Block1.Tokens)
		g := byName[name]
		if g == nil {
			g = &blockGroup{name: name}
		}
		for _, ref := range []duplicates.UnitRef{p.Block1, p.Block2} {
			if placed[ref.Index] {
				continue
			}
			occ, reason := locate(root, src, lines, ref)
			if reason != "" {
				skip(what, reason)
				continue
			}
			placed[ref.Index] = true
			g.occ = append(g.occ, occ)
		}
		if byName[name] == nil && len(g.occ) > 0 {
			byName[name] = g
			groups = append(groups, g)
		}
	}

	var edits []Edit
	var helpers []Helper
	for _, g := range groups {
		if len(g.occ) < 2 {
			skip(g.name, "fewer than two usable occurrences")
			continue
		}
		slices.SortFunc(g.occ, func(a, b *occurrence) int { return a.start - b.start })
		for _, o := range g.occ {
			o.flow = analyzeFlow(o.stmts, src, module)
			o.after = readsAfter(root, src, o)
		}

		source := g.occ[0]
		kept := []*occurrence{source}
		maps := []map[string]string{identity(source.flow)}
		for _, o := range g.occ[1:] {
			m, reason := alignNames(source, o)
			if reason != "" {
				skip(fmt.Sprintf("%s at offset %d", g.name, o.start), reason)
				continue
			}
			kept = append(kept, o)
			maps = append(maps, m)
		}
		if len(kept) < 2 {
			skip(g.name, "occurrences bind names inconsistently")
			continue
		}

		var outputs []string
		for _, w := range source.flow.writes {
			for i, o := range kept {
				if o.after[maps[i][w]] {
					outputs = append(outputs, w)
					break
				}
			}
		}

		helpers = append(helpers, Helper{
			Name:   g.name,
			Params: source.flow.inputs,
			Text:   extractedHelper(g.name, source, outputs),
			From:   fmt.Sprintf("offset %d", source.start),
		})
		for i, o := range kept {
			edits = append(edits, Edit{
				Start:       o.start,
				End:         o.end,
				OldText:     string(src[o.start:o.end]),
				NewText:     o.indent + extractedCall(g.name, source.flow.inputs, outputs, maps[i]),
				Description: fmt.Sprintf("replace block with a call of %s", g.name),
			})
		}
		r.log.WithFields(logrus.Fields{
			"helper":      g.name,
			"occurrences": len(kept),
			"inputs":      len(source.flow.inputs),
			"outputs":     len(outputs),
		}).Info("extracting block")
	}

	if len(helpers) == 0 {
		out := unchanged(src)
		out.Skipped = skips
		return out, nil
	}

	edits = append(edits, insertionEdit(src, insertionPoint(root, src), helpers))
	text, err := applyEdits(src, edits)
	if err != nil {
		out := unchanged(src)
		out.Skipped = skips
		return out, fmt.Errorf("%w: %w", ErrRenderInvalid, err)
	}
	if err := validate(psr, []byte(text)); err != nil {
		r.log.WithError(err).Error("block extraction aborted")
		out := unchanged(src)
		out.Skipped = skips
		return out, err
	}

	return &Result{
		Source:  text,
		Changed: true,
		Groups:  []Group{},
		Helpers: helpers,
		Edits:   sortEdits(edits),
		Skipped: skips,
	}, nil
}

func pairRejection(p duplicates.Pair) string {
	for _, ref := range []duplicates.UnitRef{p.Block1, p.Block2} {
		if ref.Type != duplicates.UnitCode {
			return "not a code block"
		}
		if ref.Kind == duplicates.KindFunction {
			return "function blocks are handled by Refactor"
		}
	}
	if !slices.Equal(p.Block1.Tokens, p.Block2.Tokens) {
		return "blocks differ after normalization"
	}
	for _, t := range p.Block1.Tokens {
		if transferKeywords[t] {
			return "block uses " + t
		}
	}
	return ""
}

// lineOffsets returns the byte offset of the start of every line.
func lineOffsets(src []byte) []int {
	offsets := []int{0}
	for i, c := range src {
		if c == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// locate finds the sibling statements spanning exactly the block's lines.
func locate(root *sitter.Node, src []byte, lines []int, ref duplicates.UnitRef) (*occurrence, string) {
	first, last := ref.LineNumber-1, ref.EndLine-1
	if first < 0 || last >= len(lines) || first > last {
		return nil, "block lines out of range"
	}

	var head *sitter.Node
	parser.WalkTyped(root, src, func(n *sitter.Node, nodeType string, _ []byte) bool {
		if head != nil {
			return false
		}
		if int(n.StartPoint().Row) > last || int(n.EndPoint().Row) < first {
			return false
		}
		p := n.Parent()
		if p != nil && nodeType != "comment" && (p.Type() == "module" || p.Type() == "block") &&
			int(n.StartPoint().Row) == first {
			head = n
			return false
		}
		return true
	})
	if head == nil {
		return nil, "block does not start a statement"
	}

	stmts := []*sitter.Node{head}
	for n := head.NextNamedSibling(); n != nil && int(n.StartPoint().Row) <= last; n = n.NextNamedSibling() {
		if n.Type() != "comment" {
			stmts = append(stmts, n)
		}
	}
	if int(stmts[len(stmts)-1].EndPoint().Row) > last {
		return nil, "block ends inside a statement"
	}

	start := lines[first]
	end := lineEnd(src, int(stmts[len(stmts)-1].EndByte()))
	if end > 0 && src[end-1] == '\n' {
		end--
	}
	text := string(src[start:end])
	if strings.TrimRight(text, " \t\r\n") != strings.TrimRight(ref.Text, " \t\r\n") {
		return nil, "block text does not match the source"
	}
	return &occurrence{
		start:  start,
		end:    end,
		indent: string(src[start:head.StartByte()]),
		stmts:  stmts,
		text:   text,
	}, ""
}

// moduleNames returns names bound at module scope by definitions, imports
// and assignments.
func moduleNames(root *sitter.Node, src []byte) map[string]bool {
	names := make(map[string]bool)
	for i := range int(root.NamedChildCount()) {
		stmt := root.NamedChild(i)
		if stmt.Type() == "decorated_definition" {
			stmt = stmt.ChildByFieldName("definition")
		}
		if stmt == nil {
			continue
		}
		switch stmt.Type() {
		case "function_definition", "class_definition":
			names[parser.GetNodeText(stmt.ChildByFieldName("name"), src)] = true
		case "import_statement", "import_from_statement":
			for _, n := range importedNames(stmt, src) {
				names[n] = true
			}
		case "expression_statement":
			if a := stmt.NamedChild(0); a != nil && a.Type() == "assignment" {
				collectTargets(a.ChildByFieldName("left"), src, func(n string) { names[n] = true })
			}
		}
	}
	return names
}

func importedNames(stmt *sitter.Node, src []byte) []string {
	var skip *sitter.Node
	if stmt.Type() == "import_from_statement" {
		skip = stmt.ChildByFieldName("module_name")
	}
	var out []string
	for i := range int(stmt.NamedChildCount()) {
		child := stmt.NamedChild(i)
		if skip != nil && child.StartByte() == skip.StartByte() {
			continue
		}
		switch child.Type() {
		case "aliased_import":
			out = append(out, parser.GetNodeText(child.ChildByFieldName("alias"), src))
		case "dotted_name":
			if stmt.Type() == "import_from_statement" {
				out = append(out, parser.GetNodeText(child, src))
			} else if id := child.NamedChild(0); id != nil {
				out = append(out, parser.GetNodeText(id, src))
			}
		}
	}
	return out
}

func collectTargets(n *sitter.Node, src []byte, fn func(string)) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		fn(parser.GetNodeText(n, src))
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern", "parenthesized_expression", "tuple", "list":
		for i := range int(n.NamedChildCount()) {
			collectTargets(n.NamedChild(i), src, fn)
		}
	}
}

// dataflow is what a block reads before writing and what it writes, in
// first-seen order, plus every identifier in document order.
type dataflow struct {
	inputs []string
	writes []string
	idents []string

	read    map[string]bool
	written map[string]bool
	module  map[string]bool
	src     []byte
}

func analyzeFlow(stmts []*sitter.Node, src []byte, module map[string]bool) *dataflow {
	f := &dataflow{
		read:    make(map[string]bool),
		written: make(map[string]bool),
		module:  module,
		src:     src,
	}
	for _, s := range stmts {
		f.scan(s, nil)
		parser.WalkTyped(s, src, func(n *sitter.Node, nodeType string, source []byte) bool {
			if nodeType == "identifier" {
				f.idents = append(f.idents, parser.GetNodeText(n, source))
			}
			return true
		})
	}

	// a module name the block rebinds must still arrive as an argument
	var inputs []string
	for _, name := range f.inputs {
		if builtins[name] && !f.written[name] {
			continue
		}
		if f.module[name] && !f.written[name] {
			continue
		}
		inputs = append(inputs, name)
	}
	f.inputs = inputs
	return f
}

func (f *dataflow) use(name string, shadow map[string]bool) {
	if shadow[name] || f.written[name] || f.read[name] {
		return
	}
	f.read[name] = true
	f.inputs = append(f.inputs, name)
}

func (f *dataflow) bind(name string, shadow map[string]bool) {
	if shadow[name] || f.written[name] {
		return
	}
	f.written[name] = true
	f.writes = append(f.writes, name)
}

func (f *dataflow) scan(n *sitter.Node, shadow map[string]bool) {
	if n == nil {
		return
	}
	field := n.ChildByFieldName
	switch n.Type() {
	case "identifier":
		f.use(parser.GetNodeText(n, f.src), shadow)
	case "comment":
	case "attribute":
		f.scan(field("object"), shadow)
	case "keyword_argument":
		f.scan(field("value"), shadow)
	case "assignment":
		f.scan(field("right"), shadow)
		f.target(field("left"), shadow)
	case "augmented_assignment":
		f.scan(field("right"), shadow)
		f.scan(field("left"), shadow)
		f.target(field("left"), shadow)
	case "named_expression":
		f.scan(field("value"), shadow)
		f.target(field("name"), shadow)
	case "for_statement":
		f.scan(field("right"), shadow)
		f.target(field("left"), shadow)
		f.scan(field("body"), shadow)
		f.scan(field("alternative"), shadow)
	case "as_pattern":
		f.scan(n.NamedChild(0), shadow)
		alias := field("alias")
		if alias == nil && n.NamedChildCount() > 1 {
			alias = n.NamedChild(int(n.NamedChildCount()) - 1)
		}
		f.target(alias, shadow)
	case "as_pattern_target":
		for i := range int(n.NamedChildCount()) {
			f.target(n.NamedChild(i), shadow)
		}
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		local := copyShadow(shadow)
		var rest []*sitter.Node
		for i := range int(n.NamedChildCount()) {
			child := n.NamedChild(i)
			if child.Type() == "for_in_clause" {
				f.scan(child.ChildByFieldName("right"), local)
				collectTargets(child.ChildByFieldName("left"), f.src, func(name string) { local[name] = true })
				continue
			}
			rest = append(rest, child)
		}
		for _, child := range rest {
			f.scan(child, local)
		}
	case "lambda":
		local := copyShadow(shadow)
		parser.WalkTyped(field("parameters"), f.src, func(p *sitter.Node, nodeType string, source []byte) bool {
			if nodeType == "identifier" {
				local[parser.GetNodeText(p, source)] = true
			}
			return true
		})
		f.scan(field("body"), local)
	case "function_definition", "class_definition":
		f.bind(parser.GetNodeText(field("name"), f.src), shadow)
	case "import_statement", "import_from_statement":
		for _, name := range importedNames(n, f.src) {
			f.bind(name, shadow)
		}
	default:
		for i := range int(n.NamedChildCount()) {
			f.scan(n.NamedChild(i), shadow)
		}
	}
}

func (f *dataflow) target(n *sitter.Node, shadow map[string]bool) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		f.bind(parser.GetNodeText(n, f.src), shadow)
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern", "parenthesized_expression",
		"tuple", "list", "as_pattern_target":
		for i := range int(n.NamedChildCount()) {
			f.target(n.NamedChild(i), shadow)
		}
	default:
		f.scan(n, shadow)
	}
}

func copyShadow(shadow map[string]bool) map[string]bool {
	local := make(map[string]bool, len(shadow))
	for k, v := range shadow {
		local[k] = v
	}
	return local
}

// readsAfter collects the names read after the block inside the top-level
// statement that contains it, or the rest of the module for a module-level
// block.
func readsAfter(root *sitter.Node, src []byte, o *occurrence) map[string]bool {
	limit := len(src)
	for i := range int(root.NamedChildCount()) {
		top := root.NamedChild(i)
		if int(top.StartByte()) <= o.start && int(top.EndByte()) >= o.end && o.stmts[0].Parent().Type() != "module" {
			limit = int(top.EndByte())
			break
		}
	}

	names := make(map[string]bool)
	parser.WalkTyped(root, src, func(n *sitter.Node, nodeType string, source []byte) bool {
		if int(n.EndByte()) <= o.end || int(n.StartByte()) >= limit {
			return false
		}
		if nodeType == "identifier" && int(n.StartByte()) >= o.end {
			names[parser.GetNodeText(n, source)] = true
		}
		return true
	})
	return names
}

func identity(f *dataflow) map[string]string {
	m := make(map[string]string)
	for _, n := range f.idents {
		m[n] = n
	}
	return m
}

// alignNames maps the source occurrence's names onto o. Names the source
// binds or receives may be renamed consistently; every other name must be
// the same in both.
func alignNames(source, o *occurrence) (map[string]string, string) {
	if len(source.flow.idents) != len(o.flow.idents) {
		return nil, "blocks differ in structure"
	}
	local := make(map[string]bool)
	for _, n := range source.flow.inputs {
		local[n] = true
	}
	for _, n := range source.flow.writes {
		local[n] = true
	}

	fwd := make(map[string]string)
	back := make(map[string]string)
	for i, a := range source.flow.idents {
		b := o.flow.idents[i]
		if !local[a] {
			if a != b {
				return nil, fmt.Sprintf("free name %s is %s in the other block", a, b)
			}
			continue
		}
		if prev, ok := fwd[a]; ok && prev != b {
			return nil, fmt.Sprintf("%s maps to both %s and %s", a, prev, b)
		}
		if prev, ok := back[b]; ok && prev != a {
			return nil, fmt.Sprintf("%s maps from both %s and %s", b, prev, a)
		}
		fwd[a], back[b] = b, a
	}
	return fwd, ""
}

func extractedHelper(name string, source *occurrence, outputs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "def %s(%s):\n", name, strings.Join(source.flow.inputs, ", "))

	lines := strings.Split(source.text, "\n")
	cut := len(source.indent)
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			b.WriteString("\n")
			continue
		}
		trim := min(cut, len(l)-len(strings.TrimLeft(l, " \t")))
		b.WriteString("    ")
		b.WriteString(l[trim:])
		b.WriteString("\n")
	}
	if len(outputs) > 0 {
		b.WriteString("    return " + strings.Join(outputs, ", ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func extractedCall(name string, inputs, outputs []string, m map[string]string) string {
	rename := func(names []string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = n
			if to, ok := m[n]; ok {
				out[i] = to
			}
		}
		return out
	}
	call := name + "(" + strings.Join(rename(inputs), ", ") + ")"
	if len(outputs) == 0 {
		return call
	}
	return strings.Join(rename(outputs), ", ") + " = " + call
}
