package refactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
)

func pairsOf(t *testing.T, src string) []duplicates.Pair {
	t.Helper()
	analysis, err := duplicates.New().AnalyzeSource("blocks.py", []byte(src))
	require.NoError(t, err)
	return analysis.Pairs
}

func TestExtractBlocks_ModuleLevel(t *testing.T) {
	src := `for row in rows:
    value = row * 2
    print(value)

for item in items:
    result = item * 2
    print(result)
`
	pairs := pairsOf(t, src)
	require.Len(t, pairs, 1)

	got, err := New().ExtractBlocks([]byte(src), pairs)
	require.NoError(t, err)
	require.True(t, got.Changed)
	require.Len(t, got.Helpers, 1)

	h := got.Helpers[0].Name
	assert.True(t, strings.HasPrefix(h, ExtractedPrefix))
	assert.Equal(t, []string{"rows"}, got.Helpers[0].Params)

	want := "def " + h + `(rows):
    for row in rows:
        value = row * 2
        print(value)


` + h + `(rows)

` + h + `(items)
`
	assert.Equal(t, want, got.Source)
}

func TestExtractBlocks_Outputs(t *testing.T) {
	src := `def report(rows):
    print(len(rows))
    for row in rows:
        total = row + 1
    print(total)

def summary(items):
    print(len(items))
    for item in items:
        acc = item + 1
    print(acc)
`
	got, err := New().ExtractBlocks([]byte(src), pairsOf(t, src))
	require.NoError(t, err)
	require.True(t, got.Changed)
	require.Len(t, got.Helpers, 1)

	h := got.Helpers[0].Name
	assert.Equal(t, "def "+h+`(rows):
    for row in rows:
        total = row + 1
    return total`, got.Helpers[0].Text)
	assert.Contains(t, got.Source, "    print(len(rows))\n    total = "+h+"(rows)\n    print(total)\n")
	assert.Contains(t, got.Source, "    print(len(items))\n    acc = "+h+"(items)\n    print(acc)\n")

	var reasons []string
	for _, s := range got.Skipped {
		reasons = append(reasons, s.Reason)
	}
	assert.Contains(t, reasons, "function blocks are handled by Refactor")
}

func TestExtractBlocks_NothingUsable(t *testing.T) {
	src := `for row in rows:
    if row:
        break

for item in items:
    if item:
        break
`
	got, err := New().ExtractBlocks([]byte(src), pairsOf(t, src))
	require.NoError(t, err)
	assert.False(t, got.Changed)
	assert.Equal(t, src, got.Source)
	assert.Equal(t, NoDuplicates, got.Message)
	require.NotEmpty(t, got.Skipped)
	assert.Equal(t, "block uses break", got.Skipped[0].Reason)
}

func TestExtractBlocks_SyntaxError(t *testing.T) {
	_, err := New().ExtractBlocks([]byte("for x in:\n"), nil)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestPairRejection(t *testing.T) {
	ref := func(kind duplicates.BlockKind, toks string) duplicates.UnitRef {
		return duplicates.UnitRef{Type: duplicates.UnitCode, Kind: kind, Tokens: duplicates.TokenSequence(strings.Fields(toks))}
	}
	tests := []struct {
		name string
		pair duplicates.Pair
		want string
	}{
		{"usable", duplicates.Pair{Block1: ref(duplicates.KindStatement, "VAR = NUM"), Block2: ref(duplicates.KindStatement, "VAR = NUM")}, ""},
		{"functions", duplicates.Pair{Block1: ref(duplicates.KindFunction, "VAR"), Block2: ref(duplicates.KindStatement, "VAR")}, "function blocks are handled by Refactor"},
		{"different tokens", duplicates.Pair{Block1: ref(duplicates.KindStatement, "VAR = NUM"), Block2: ref(duplicates.KindStatement, "VAR = STR")}, "blocks differ after normalization"},
		{"raise", duplicates.Pair{Block1: ref(duplicates.KindControl, "if VAR : raise VAR"), Block2: ref(duplicates.KindControl, "if VAR : raise VAR")}, "block uses raise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pairRejection(tt.pair))
		})
	}
}

func TestAnalyzeFlow(t *testing.T) {
	src := []byte(`count = count + step
names = [n.upper() for n in raw if n]
with open(path) as fh:
    data = fh.read()
fn = lambda k: k + offset
print(len(data), helper)
`)
	res, err := newParser(t).Parse(src, "flow.py")
	require.NoError(t, err)
	defer res.Close()

	stmts := statements(res.Root())
	module := map[string]bool{"helper": true, "count": true}
	flow := analyzeFlow(stmts, src, module)

	assert.Equal(t, []string{"count", "step", "raw", "path", "offset"}, flow.inputs)
	assert.Equal(t, []string{"count", "names", "fh", "data", "fn"}, flow.writes)
}

func TestRefactorBlocks(t *testing.T) {
	src := []byte(`for row in rows:
    value = row * 2
    print(value)

for item in items:
    result = item * 2
    print(result)
`)
	got, err := New().RefactorBlocks(src)
	require.NoError(t, err)
	want, err := New().ExtractBlocks(src, pairsOf(t, string(src)))
	require.NoError(t, err)
	assert.True(t, got.Changed)
	assert.Equal(t, want.Source, got.Source)

	_, err = New().RefactorBlocks([]byte("for x in:\n    pass\n"))
	assert.ErrorIs(t, err, ErrSyntax)
}
