package duplicates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/clonefix/pkg/parser"
)

func parse(t *testing.T, src string) *parser.ParseResult {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)
	result, err := p.Parse([]byte(src), "test.py")
	require.NoError(t, err)
	t.Cleanup(result.Close)
	return result
}

const functionsSrc = `import functools

def add(a, b):
    return a + b
    # trailing note

    # second note

# module comment
@functools.cache
def add(x, y):
    return x + y

class K:
    def method(self):
        def inner():
            pass
        return inner

def outer():
    def helper():
        return 1
    return helper
`

func TestExtractFunctions(t *testing.T) {
	set := ExtractFunctions(parse(t, functionsSrc))

	require.Len(t, set.Module, 3)
	names := []string{set.Module[0].Name(), set.Module[1].Name(), set.Module[2].Name()}
	assert.Equal(t, []string{"add", "add", "outer"}, names)

	for _, fn := range set.Module {
		assert.Equal(t, ScopeModule, fn.Record().Scope)
	}

	var nested []string
	for _, rec := range set.Nested {
		assert.Equal(t, ScopeNested, rec.Scope)
		nested = append(nested, rec.Name)
	}
	assert.Equal(t, []string{"method", "inner", "helper"}, nested)
}

func TestExtractFunctions_TrailingComments(t *testing.T) {
	set := ExtractFunctions(parse(t, functionsSrc))
	first := set.Module[0].Record()

	assert.Equal(t, 3, first.StartLine)
	assert.Equal(t, 7, first.EndLine)
	assert.True(t, strings.HasSuffix(first.Text, "# second note"))
	assert.NotContains(t, first.Text, "module comment")
	assert.Equal(t, first.Text, functionsSrc[first.Start:first.End])
	assert.Equal(t, []string{"a", "b"}, first.Params)
}

func TestExtractFunctions_Decorated(t *testing.T) {
	set := ExtractFunctions(parse(t, functionsSrc))
	second := set.Module[1].Record()

	assert.Equal(t, 10, second.StartLine)
	assert.True(t, strings.HasPrefix(second.Text, "@functools.cache\ndef add(x, y):"))
	assert.Equal(t, "decorated_definition", second.Outer.Type())
	assert.Equal(t, "function_definition", second.Def.Type())
	assert.Equal(t, []string{"x", "y"}, second.Params)
}

// A redefined name resolves to its last definition; the earlier one is
// kept in Shadowed rather than merged or discarded.
func TestFunctionSet_LastDefinitionWins(t *testing.T) {
	set := ExtractFunctions(parse(t, functionsSrc))

	fn, ok := set.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, 10, fn.Record().StartLine)

	live := set.Live()
	require.Len(t, live, 2)
	assert.Equal(t, "add", live[0].Name())
	assert.Equal(t, 10, live[0].Record().StartLine)
	assert.Equal(t, "outer", live[1].Name())

	shadowed := set.Shadowed()
	require.Len(t, shadowed, 1)
	assert.Equal(t, 3, shadowed[0].Record().StartLine)

	_, ok = set.Lookup("method")
	assert.False(t, ok, "nested functions never resolve")
	_, ok = set.Lookup("missing")
	assert.False(t, ok)
}

func TestExtractFunctions_Async(t *testing.T) {
	set := ExtractFunctions(parse(t, "async def fetch(url, *, timeout=3):\n    return await get(url)\n"))
	require.Len(t, set.Module, 1)
	rec := set.Module[0].Record()
	assert.True(t, rec.Async)
	assert.Equal(t, []string{"url", "*", "timeout"}, rec.Params)
}

func TestExactDuplicates(t *testing.T) {
	src := `def f(a):
    x = a * 2
    return x

def f(a):
        x = a * 2

        return x

def f(a):
    return a

def g(a):
    x = a * 2
    return x
`
	result := parse(t, src)
	dups := ExactDuplicates(ExtractFunctions(result), result.Source)

	require.Len(t, dups, 1)
	assert.Equal(t, "f", dups[0].Name)
	assert.Equal(t, [2]int{1, 5}, dups[0].Lines)
}
