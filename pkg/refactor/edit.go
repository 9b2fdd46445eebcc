package refactor

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/parser"
)

// applyEdits splices every edit into src. Edits may not overlap; zero-length
// inserts may touch the start of another edit and land before it.
func applyEdits(src []byte, edits []Edit) (string, error) {
	sorted := sortEdits(edits)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return "", fmt.Errorf("overlapping edits at %d and %d", sorted[i-1].Start, sorted[i].Start)
		}
	}

	var b strings.Builder
	b.Grow(len(src))
	pos := 0
	for _, e := range sorted {
		b.Write(src[pos:e.Start])
		b.WriteString(e.NewText)
		pos = e.End
	}
	b.Write(src[pos:])
	return b.String(), nil
}

func sortEdits(edits []Edit) []Edit {
	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})
	return sorted
}

// wrapperEdit replaces a member's body with one call to the helper. A
// leading docstring is kept.
func wrapperEdit(member, rep *duplicates.FunctionRecord, helper string, src []byte) Edit {
	body := member.Def.ChildByFieldName("body")
	start := int(body.StartByte())
	prefix := ""

	stmts := statements(body)
	if len(stmts) > 0 && isDocstring(stmts[0]) {
		if len(stmts) > 1 {
			start = int(stmts[1].StartByte())
		} else {
			doc := stmts[0]
			start = int(doc.EndByte())
			prefix = "\n" + string(src[lineStart(src, int(doc.StartByte())):doc.StartByte()])
		}
	}

	call := helper + "(" + forwardArgs(member.Params, rep.Params) + ")"
	if member.Async {
		call = "await " + call
	}
	if returnsValue(member.Def) {
		call = "return " + call
	}

	return Edit{
		Start:       start,
		End:         member.End,
		OldText:     string(src[start:member.End]),
		NewText:     prefix + call,
		Description: fmt.Sprintf("reduce %s to a call of %s", member.Name, helper),
	}
}

// forwardArgs builds the argument list that passes a member's own
// parameters to a helper with the representative's signature. Keyword-only
// parameters are matched by position and passed by the helper's names.
func forwardArgs(member, rep []string) string {
	repKeyword := keywordOnly(rep)
	var args []string
	kwOnly, kw := false, 0
	for _, p := range member {
		switch {
		case p == "/" || p == "":
		case p == "*":
			kwOnly = true
		case strings.HasPrefix(p, "**"):
			args = append(args, p)
		case strings.HasPrefix(p, "*"):
			args = append(args, p)
			kwOnly = true
		case kwOnly:
			name := p
			if kw < len(repKeyword) {
				name = repKeyword[kw]
			}
			args = append(args, name+"="+p)
			kw++
		default:
			args = append(args, p)
		}
	}
	return strings.Join(args, ", ")
}

func keywordOnly(params []string) []string {
	var out []string
	kwOnly := false
	for _, p := range params {
		switch {
		case p == "/" || p == "":
		case p == "*":
			kwOnly = true
		case strings.HasPrefix(p, "**"):
		case strings.HasPrefix(p, "*"):
			kwOnly = true
		case kwOnly:
			out = append(out, p)
		}
	}
	return out
}

// deletionEdit removes a definition together with the blank lines that
// follow it.
func deletionEdit(rec *duplicates.FunctionRecord, src []byte, rep string) Edit {
	end := lineEnd(src, rec.End)
	for end < len(src) {
		next := lineEnd(src, end)
		if strings.TrimSpace(string(src[end:next])) != "" {
			break
		}
		end = next
	}
	return Edit{
		Start:       rec.Start,
		End:         end,
		OldText:     string(src[rec.Start:end]),
		Description: fmt.Sprintf("remove %s in favor of %s", rec.Name, rep),
	}
}

// retargetEdits renames the callee of every call whose function is a bare
// identifier found in renames.
func retargetEdits(root *sitter.Node, src []byte, renames map[string]string) []Edit {
	if len(renames) == 0 {
		return nil
	}
	var edits []Edit
	parser.WalkTyped(root, src, func(n *sitter.Node, nodeType string, source []byte) bool {
		if nodeType != "call" {
			return true
		}
		callee := n.ChildByFieldName("function")
		if callee == nil || callee.Type() != "identifier" {
			return true
		}
		name := parser.GetNodeText(callee, source)
		if to, ok := renames[name]; ok {
			edits = append(edits, Edit{
				Start:       int(callee.StartByte()),
				End:         int(callee.EndByte()),
				OldText:     name,
				NewText:     to,
				Description: fmt.Sprintf("call %s instead of %s", to, name),
			})
		}
		return true
	})
	return sortEdits(edits)
}

// within reports whether e lies entirely inside one of spans.
func within(spans [][2]int, e Edit) bool {
	for _, s := range spans {
		if e.Start >= s[0] && e.End <= s[1] {
			return true
		}
	}
	return false
}

// references counts identifier uses of names outside call position. They
// are not rewritten by collapse.
func references(root *sitter.Node, src []byte, names map[string]string, skip [][2]int) map[string]int {
	out := make(map[string]int)
	parser.WalkTyped(root, src, func(n *sitter.Node, nodeType string, source []byte) bool {
		if nodeType != "identifier" {
			return true
		}
		name := parser.GetNodeText(n, source)
		if _, ok := names[name]; !ok {
			return true
		}
		if within(skip, Edit{Start: int(n.StartByte()), End: int(n.EndByte())}) {
			return true
		}
		p := n.Parent()
		if p == nil {
			return true
		}
		field := ""
		switch p.Type() {
		case "call":
			field = "function"
		case "attribute":
			field = "attribute"
		case "keyword_argument", "function_definition":
			field = "name"
		}
		if field != "" && isField(p, field, n) {
			return true
		}
		out[name]++
		return true
	})
	return out
}

func isField(parent *sitter.Node, field string, n *sitter.Node) bool {
	child := parent.ChildByFieldName(field)
	return child != nil && child.StartByte() == n.StartByte() && child.EndByte() == n.EndByte()
}
