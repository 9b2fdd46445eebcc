package duplicates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder tokens.
const (
	TokenVar      = "VAR"
	TokenNum      = "NUM"
	TokenStr      = "STR"
	TokenFloat    = "FLOAT"
	TokenDate     = "DATE"
	TokenTime     = "TIME"
	TokenDateTime = "DATETIME"
)

// ErrUnparsable marks a unit that could not be tokenized at all.
var ErrUnparsable = errors.New("unparsable")

// UnparsableError describes why a fragment was rejected. Line is 1-based
// relative to the fragment.
type UnparsableError struct {
	Line   int
	Reason string
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("unparsable at line %d: %s", e.Line, e.Reason)
}

func (e *UnparsableError) Unwrap() error { return ErrUnparsable }

// TokenSequence is an ordered list of normalized tokens.
type TokenSequence []string

// String joins the tokens with single spaces.
func (ts TokenSequence) String() string {
	return strings.Join(ts, " ")
}

// Python keywords kept verbatim. Soft keywords (match, case, type) are
// treated as identifiers.
var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsKeyword reports whether word is a reserved Python keyword.
func IsKeyword(word string) bool {
	return keywords[word]
}

var operators3 = map[string]bool{
	"**=": true, "//=": true, ">>=": true, "<<=": true, "...": true,
}

var operators2 = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true, ":=": true, "->": true,
	"**": true, "//": true, "<<": true, ">>": true, "+=": true, "-=": true,
	"*=": true, "/=": true, "%=": true, "&=": true, "|=": true, "^=": true,
	"@=": true,
}

const operators1 = "+-*/%@&|^~<>()[]{},:;.="

var stringPrefixes = map[string]bool{
	"r": true, "u": true, "b": true, "f": true,
	"rb": true, "br": true, "fr": true, "rf": true,
}

func isStringPrefix(word string) bool {
	return stringPrefixes[strings.ToLower(word)]
}

// Clean blanks out comments and string literal contents. Every byte except
// newlines inside a blanked region becomes a space, so line count and byte
// offsets of the result match the input. Triple-quoted strings, prefix and
// quotes included, are blanked completely; other strings keep their quotes.
func Clean(text string) (string, error) {
	return clean(text, true)
}

// CleanLenient is Clean that blanks an unterminated string to the end of its
// line (or of the text, for triple quotes) instead of failing.
func CleanLenient(text string) string {
	out, _ := clean(text, false)
	return out
}

func clean(text string, strict bool) (string, error) {
	src := []byte(text)
	out := make([]byte, len(src))
	copy(out, src)

	blank := func(from, to int) {
		for k := from; k < to; k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}

	// blankBody keeps the quotes of a closed single-line string.
	blankBody := func(quote, end int, closed bool) {
		if closed {
			end--
		}
		blank(quote+1, max(quote+1, end))
	}

	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == '#':
			end := i
			for end < len(src) && src[end] != '\n' {
				end++
			}
			blank(i, end)
			i = end
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			if i < len(src) && (src[i] == '"' || src[i] == '\'') && isStringPrefix(string(src[start:i])) {
				end, lines, ok := scanString(src, i)
				if !ok && strict {
					return "", &UnparsableError{Line: line, Reason: "unterminated string literal"}
				}
				if isTriple(src, i) {
					blank(start, end)
				} else {
					blankBody(i, end, ok)
				}
				line += lines
				i = end
			}
		case c == '"' || c == '\'':
			end, lines, ok := scanString(src, i)
			if !ok && strict {
				return "", &UnparsableError{Line: line, Reason: "unterminated string literal"}
			}
			if isTriple(src, i) {
				blank(i, end)
			} else {
				blankBody(i, end, ok)
			}
			line += lines
			i = end
		default:
			i++
		}
	}
	return string(out), nil
}

func isTriple(src []byte, i int) bool {
	q := src[i]
	return i+2 < len(src) && src[i+1] == q && src[i+2] == q
}

// scanString returns the offset just past the string literal starting at the
// quote at i, the number of newlines it spans, and whether it was closed.
// An unclosed single-quoted string stops at the end of its line.
func scanString(src []byte, i int) (int, int, bool) {
	q := src[i]
	lines := 0
	if isTriple(src, i) {
		j := i + 3
		for j < len(src) {
			switch {
			case src[j] == '\\':
				if j+1 < len(src) && src[j+1] == '\n' {
					lines++
				}
				j += 2
			case src[j] == '\n':
				lines++
				j++
			case j+2 < len(src) && src[j] == q && src[j+1] == q && src[j+2] == q:
				return j + 3, lines, true
			default:
				j++
			}
		}
		return len(src), lines, false
	}

	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			if j+1 < len(src) && src[j+1] == '\n' {
				lines++
			}
			j += 2
		case '\n':
			return j, lines, false
		case q:
			return j + 1, lines, true
		default:
			j++
		}
	}
	return len(src), lines, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

var (
	dateTimeShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?$`)
	dateShape     = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}$`)
	timeShape     = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2}(\.\d+)?)?$`)
)

// Normalizer turns source text into an abstracted token stream.
// The zero value is ready to use.
type Normalizer struct {
	// LiteralShapes tags float, date, time and date-time literals distinctly
	// instead of folding them into NUM and STR.
	LiteralShapes bool
}

// Normalize tokenizes text with the default Normalizer.
func Normalize(text string) (TokenSequence, error) {
	return Normalizer{}.Normalize(text)
}

// Normalize returns the token sequence for a fragment of Python source.
// The fragment may be indented; common leading whitespace is removed first.
// Any lexical failure returns nil and an error wrapping ErrUnparsable.
func (n Normalizer) Normalize(text string) (TokenSequence, error) {
	cleaned, err := Clean(text)
	if err != nil {
		return nil, err
	}

	origLines := strings.Split(text, "\n")
	cleanLines := strings.Split(cleaned, "\n")
	if err := checkIndentation(cleanLines); err != nil {
		return nil, err
	}
	cut := commonIndent(cleanLines)
	for i := range cleanLines {
		if len(cleanLines[i]) >= cut {
			cleanLines[i] = cleanLines[i][cut:]
			origLines[i] = origLines[i][cut:]
		} else {
			cleanLines[i] = ""
			origLines[i] = ""
		}
	}

	t := &tokenizer{
		src:    []byte(strings.Join(cleanLines, "\n")),
		orig:   []byte(strings.Join(origLines, "\n")),
		shapes: n.LiteralShapes,
		line:   1,
	}
	return t.run()
}

// commonIndent returns the width of the shortest leading whitespace among
// non-blank lines.
func commonIndent(lines []string) int {
	cut := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		w := len(l) - len(strings.TrimLeft(l, " \t"))
		if cut < 0 || w < cut {
			cut = w
		}
	}
	return max(cut, 0)
}

// checkIndentation rejects mixed tabs and spaces in one indent and an
// unindent to a level that was never opened. Lines that continue an open
// bracket or a backslash continuation are skipped.
func checkIndentation(lines []string) error {
	var stack []int
	depth := 0
	continued := false
	for i, l := range lines {
		code := strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(code) == "" {
			continue
		}
		if depth == 0 && !continued {
			ws := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
			if strings.Contains(ws, "\t") && strings.Contains(ws, " ") {
				return &UnparsableError{Line: i + 1, Reason: "mixed tabs and spaces in indentation"}
			}
			width := len(strings.ReplaceAll(ws, "\t", "    "))
			switch {
			case len(stack) == 0 || width > stack[len(stack)-1]:
				stack = append(stack, width)
			case width < stack[len(stack)-1]:
				for len(stack) > 0 && stack[len(stack)-1] > width {
					stack = stack[:len(stack)-1]
				}
				if len(stack) == 0 || stack[len(stack)-1] != width {
					return &UnparsableError{Line: i + 1, Reason: "unindent does not match any outer indentation level"}
				}
			}
		}
		for k := 0; k < len(code); k++ {
			switch code[k] {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				if depth > 0 {
					depth--
				}
			}
		}
		continued = strings.HasSuffix(code, "\\")
	}
	return nil
}

type tokenizer struct {
	src    []byte
	orig   []byte
	shapes bool
	pos    int
	line   int
	tokens TokenSequence
	stack  []byte
}

var closing = map[byte]byte{')': '(', ']': '[', '}': '{'}

func (t *tokenizer) fail(reason string) (TokenSequence, error) {
	return nil, &UnparsableError{Line: t.line, Reason: reason}
}

func (t *tokenizer) run() (TokenSequence, error) {
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case c == '\n':
			t.line++
			t.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			t.pos++
		case c == '\\':
			if t.pos+1 < len(t.src) && t.src[t.pos+1] == '\n' {
				t.pos += 2
				t.line++
				continue
			}
			if t.pos+2 < len(t.src) && t.src[t.pos+1] == '\r' && t.src[t.pos+2] == '\n' {
				t.pos += 3
				t.line++
				continue
			}
			return t.fail("unexpected character after line continuation")
		case isIdentStart(c):
			if err := t.word(); err != nil {
				return nil, err
			}
		case c >= '0' && c <= '9', c == '.' && t.pos+1 < len(t.src) && isDigit(t.src[t.pos+1]):
			t.number()
		case c == '"' || c == '\'':
			t.str()
		default:
			if ok, reason := t.operator(); !ok {
				return t.fail(reason)
			}
		}
	}
	if len(t.stack) > 0 {
		return t.fail(fmt.Sprintf("unclosed bracket %q", t.stack[len(t.stack)-1]))
	}
	return t.tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (t *tokenizer) word() error {
	start := t.pos
	for t.pos < len(t.src) {
		r, size := utf8.DecodeRune(t.src[t.pos:])
		if r == utf8.RuneError && size <= 1 && t.src[t.pos] >= utf8.RuneSelf {
			return &UnparsableError{Line: t.line, Reason: "invalid UTF-8"}
		}
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) {
			break
		}
		t.pos += size
	}
	if t.pos == start {
		return &UnparsableError{Line: t.line, Reason: "invalid character in identifier"}
	}
	w := string(t.src[start:t.pos])
	if t.pos < len(t.src) && (t.src[t.pos] == '"' || t.src[t.pos] == '\'') && isStringPrefix(w) {
		t.str()
		return nil
	}
	if keywords[w] {
		t.tokens = append(t.tokens, w)
	} else {
		t.tokens = append(t.tokens, TokenVar)
	}
	return nil
}

func (t *tokenizer) number() {
	start := t.pos
	hex := t.pos+1 < len(t.src) && t.src[t.pos] == '0' && strings.ContainsRune("xXoObB", rune(t.src[t.pos+1]))
scan:
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		switch {
		case isDigit(c), c == '_', c == '.', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			t.pos++
		case (c == '+' || c == '-') && !hex && (t.src[t.pos-1] == 'e' || t.src[t.pos-1] == 'E'):
			t.pos++
		default:
			break scan
		}
	}
	lit := string(t.src[start:t.pos])
	if t.shapes && !hex && strings.ContainsAny(lit, ".eE") && !strings.ContainsAny(lit, "jJ") {
		t.tokens = append(t.tokens, TokenFloat)
		return
	}
	t.tokens = append(t.tokens, TokenNum)
}

// str consumes a cleaned string literal whose opening quote is at t.pos.
func (t *tokenizer) str() {
	end, lines, _ := scanString(t.src, t.pos)
	quote := t.pos
	t.pos = end
	t.line += lines

	tok := TokenStr
	if t.shapes && end-1 > quote+1 && end <= len(t.orig) {
		tok = literalShape(string(t.orig[quote+1 : end-1]))
	}
	t.tokens = append(t.tokens, tok)
}

func literalShape(content string) string {
	content = strings.TrimSpace(content)
	switch {
	case dateTimeShape.MatchString(content):
		return TokenDateTime
	case dateShape.MatchString(content):
		return TokenDate
	case timeShape.MatchString(content):
		return TokenTime
	default:
		return TokenStr
	}
}

func (t *tokenizer) operator() (bool, string) {
	rest := t.src[t.pos:]
	if len(rest) >= 3 && operators3[string(rest[:3])] {
		t.tokens = append(t.tokens, string(rest[:3]))
		t.pos += 3
		return true, ""
	}
	if len(rest) >= 2 && operators2[string(rest[:2])] {
		t.tokens = append(t.tokens, string(rest[:2]))
		t.pos += 2
		return true, ""
	}
	c := rest[0]
	if strings.IndexByte(operators1, c) < 0 {
		r, _ := utf8.DecodeRune(rest)
		return false, fmt.Sprintf("invalid character %q", r)
	}
	switch c {
	case '(', '[', '{':
		t.stack = append(t.stack, c)
	case ')', ']', '}':
		if len(t.stack) == 0 {
			return false, fmt.Sprintf("unmatched %q", c)
		}
		if top := t.stack[len(t.stack)-1]; top != closing[c] {
			return false, fmt.Sprintf("closing %q does not match %q", c, top)
		}
		t.stack = t.stack[:len(t.stack)-1]
	}
	t.tokens = append(t.tokens, string(c))
	t.pos++
	return true, ""
}
