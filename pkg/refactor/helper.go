package refactor

import (
	"encoding/hex"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/blake3"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
)

// helperHashLen is the number of hex characters kept from the digest.
const helperHashLen = 32

// HelperName names the helper extracted from a group. The name depends only
// on the representative's normalized tokens, so the same body always yields
// the same helper.
func HelperName(tokens duplicates.TokenSequence) string {
	return HelperPrefix + tokenHash(tokens)
}

// ExtractedName names a helper built from a duplicated block.
func ExtractedName(tokens duplicates.TokenSequence) string {
	return ExtractedPrefix + tokenHash(tokens)
}

func tokenHash(tokens duplicates.TokenSequence) string {
	sum := blake3.Sum256([]byte(tokens.String()))
	return hex.EncodeToString(sum[:])[:helperHashLen]
}

// helperText renames the representative: everything after its name is kept
// verbatim, with retargeted call sites inside that range applied.
func helperText(rep *duplicates.FunctionRecord, name string, src []byte, retargets []Edit) string {
	from := int(rep.Def.ChildByFieldName("name").EndByte())

	var b strings.Builder
	if rep.Async {
		b.WriteString("async ")
	}
	b.WriteString("def ")
	b.WriteString(name)

	pos := from
	for _, e := range retargets {
		if e.Start < from || e.End > rep.End {
			continue
		}
		b.Write(src[pos:e.Start])
		b.WriteString(e.NewText)
		pos = e.End
	}
	b.Write(src[pos:rep.End])
	return b.String()
}

// helperOffset returns where the helper extracted from rep goes: right
// above rep and the column-0 comment lines attached to it. Defaults and
// annotations copied from rep then see the same module names rep saw.
func helperOffset(src []byte, rep *duplicates.FunctionRecord) int {
	off := lineStart(src, rep.Start)
	for off > 0 {
		prev := lineStart(src, off-1)
		line := string(src[prev:off])
		if !strings.HasPrefix(line, "#") || strings.HasPrefix(line, "#!") || strings.Contains(line, "coding") {
			break
		}
		off = prev
	}
	return off
}

// insertionPoint returns the offset where extracted block helpers go:
// after leading comments, the module docstring, __future__ imports and the
// import block that opens the module.
func insertionPoint(root *sitter.Node, src []byte) int {
	off := 0
	first := true
	for i := range int(root.NamedChildCount()) {
		n := root.NamedChild(i)
		switch t := n.Type(); {
		case t == "comment":
		case first && isDocstring(n):
		case t == "future_import_statement", t == "import_statement", t == "import_from_statement":
		default:
			return off
		}
		if n.Type() != "comment" {
			first = false
		}
		off = lineEnd(src, int(n.EndByte()))
	}
	return off
}

// lineEnd returns the offset just past the newline ending the line that
// contains pos.
func lineEnd(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	if pos < len(src) {
		pos++
	}
	return pos
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// insertionEdit places the helpers at off, separated from their
// surroundings by two blank lines.
func insertionEdit(src []byte, off int, helpers []Helper) Edit {
	texts := make([]string, len(helpers))
	names := make([]string, len(helpers))
	for i, h := range helpers {
		texts[i] = h.Text
		names[i] = h.Name
	}

	var b strings.Builder
	if off > 0 {
		if off < 2 || src[off-2] != '\n' {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(texts, "\n\n\n"))
	b.WriteString("\n")
	if off < len(src) {
		blank := 0
		for p := off; p < len(src) && src[p] == '\n' && blank < 2; p++ {
			blank++
		}
		b.WriteString(strings.Repeat("\n", 2-blank))
	}

	return Edit{
		Start:       off,
		End:         off,
		NewText:     b.String(),
		Description: "insert " + strings.Join(names, ", "),
	}
}
