package duplicates

import (
	"strings"
)

// BlockKind classifies a segmented block by the line that opened it.
type BlockKind string

const (
	KindStatement BlockKind = "statement"
	KindControl   BlockKind = "control"
	KindFunction  BlockKind = "function"
)

// Block is one indentation-delimited comparison unit. Line numbers are
// 1-based and index the original source.
type Block struct {
	Text      string    `json:"text"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Indent    int       `json:"indent"`
	Kind      BlockKind `json:"kind"`
}

var controlKeywords = []string{
	"if", "elif", "else", "for", "while", "try", "except", "finally", "with",
}

// Segmenter splits a file into indentation and keyword delimited blocks.
type Segmenter struct {
	// MinLines is the minimum number of non-blank code lines a block needs.
	MinLines int
}

// Blocks returns the blocks of src in source order.
//
// A block starts at a def, class or control keyword line, or at a
// statement that falls below the base indent of the open block. A header
// block (def, class, control) also ends at the first statement back at or
// below its header's indent. Lines continuing an open bracket or a
// backslash never start a block.
func (s Segmenter) Blocks(src string) []Block {
	minLines := s.MinLines
	if minLines <= 0 {
		minLines = 2
	}

	orig := strings.Split(src, "\n")
	code := strings.Split(CleanLenient(src), "\n")

	var blocks []Block
	var cur *openBlock

	flush := func() {
		if cur == nil {
			return
		}
		if b, ok := cur.finish(orig, code, minLines); ok {
			blocks = append(blocks, b)
		}
		cur = nil
	}

	depth := 0
	continued := false
	for i, line := range code {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			if cur != nil {
				cur.end = i
			}
			continue
		}

		if depth > 0 || continued {
			if cur != nil {
				cur.end = i
			}
		} else {
			indent := indentWidth(line)
			kind, header := headerKind(stripped)

			switch {
			case header:
				flush()
			case cur == nil:
			case cur.header && indent <= cur.indent:
				flush()
			case indent < cur.indent:
				flush()
			}

			if cur == nil {
				cur = &openBlock{start: i, indent: indent, kind: kind, header: header}
			}
			cur.end = i
		}

		depth = max(depth+bracketDelta(line), 0)
		continued = strings.HasSuffix(strings.TrimRight(line, " \t\r"), "\\")
	}
	flush()

	return blocks
}

type openBlock struct {
	start, end int
	indent     int
	kind       BlockKind
	header     bool
}

func (o *openBlock) finish(orig, code []string, minLines int) (Block, bool) {
	last := o.end
	for last > o.start && strings.TrimSpace(code[last]) == "" {
		last--
	}

	nonBlank := 0
	for i := o.start; i <= last; i++ {
		if strings.TrimSpace(code[i]) != "" {
			nonBlank++
		}
	}
	if nonBlank < minLines {
		return Block{}, false
	}
	if startsWithWord(strings.TrimSpace(code[o.start]), "return") {
		return Block{}, false
	}

	return Block{
		Text:      strings.TrimRight(strings.Join(orig[o.start:last+1], "\n"), " \t\r\n"),
		StartLine: o.start + 1,
		EndLine:   last + 1,
		Indent:    o.indent,
		Kind:      o.kind,
	}, true
}

func headerKind(stripped string) (BlockKind, bool) {
	rest := stripped
	if startsWithWord(rest, "async") {
		rest = strings.TrimSpace(rest[len("async"):])
	}
	if startsWithWord(rest, "def") {
		return KindFunction, true
	}
	if startsWithWord(stripped, "class") {
		return KindStatement, true
	}
	for _, kw := range controlKeywords {
		if startsWithWord(rest, kw) {
			return KindControl, true
		}
	}
	return KindStatement, false
}

// startsWithWord reports whether s begins with word followed by a
// non-identifier character or the end of s.
func startsWithWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	if len(s) == len(word) {
		return true
	}
	return !isIdentPart(s[len(word)])
}

func indentWidth(line string) int {
	width := 0
	for _, c := range line {
		switch c {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

func bracketDelta(line string) int {
	d := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '[', '{':
			d++
		case ')', ']', '}':
			d--
		}
	}
	return d
}
