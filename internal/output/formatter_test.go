package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"JSON", FormatJSON},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"toon", FormatTOON},
		{"", FormatText},
		{"unknown", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFormat(tt.input))
		})
	}
}

func TestNewFormatter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, true)
	require.NoError(t, err)
	assert.False(t, f.Colored())

	require.NoError(t, f.Output(map[string]int{"pairs": 2}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pairs": 2}`, string(data))
}

func TestNewFormatter_BadPath(t *testing.T) {
	_, err := NewFormatter(FormatText, filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	assert.Error(t, err)
}

func sampleTable() *Table {
	return NewTable("Duplicates",
		[]string{"Line A", "Line B", "Similarity"},
		[][]string{{"1", "4", "100.0%"}, {"7", "12", "80.0%"}},
		[]string{"2 pairs", "", ""},
		nil,
	)
}

func TestTable_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(FormatText, &buf, false).Output(sampleTable()))
	out := buf.String()
	assert.Contains(t, out, "Duplicates\n==========")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "2 pairs")
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable("Smells", []string{"Function"}, nil, nil, nil)
	require.NoError(t, New(FormatText, &buf, false).Output(tbl))
	assert.Contains(t, buf.String(), "(none)")

	buf.Reset()
	require.NoError(t, New(FormatMarkdown, &buf, false).Output(tbl))
	assert.Equal(t, "## Smells\n\n_none_\n\n", buf.String())
}

func TestTable_Markdown(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable("", []string{"Name", "Text"}, [][]string{{"f", "a|b"}}, nil, nil)
	require.NoError(t, New(FormatMarkdown, &buf, false).Output(tbl))
	assert.Equal(t, "| Name | Text |\n| --- | --- |\n| f | a\\|b |\n\n", buf.String())
}

func TestTable_JSONData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(FormatJSON, &buf, false).Output(sampleTable()))

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "12", rows[1]["Line B"])

	buf.Reset()
	tbl := sampleTable()
	tbl.Data = struct {
		Pairs int `json:"pairs"`
	}{2}
	require.NoError(t, New(FormatJSON, &buf, false).Output(tbl))
	assert.JSONEq(t, `{"pairs": 2}`, buf.String())
}

func TestOutput_TOON(t *testing.T) {
	type summary struct {
		Files int `json:"files" toon:"files"`
		Pairs int `json:"pairs" toon:"pairs"`
	}
	var buf bytes.Buffer
	require.NoError(t, New(FormatTOON, &buf, false).Output(summary{Files: 3, Pairs: 1}))
	assert.Contains(t, buf.String(), "files: 3")
	assert.Contains(t, buf.String(), "pairs: 1")
}

func TestOutput_RawMarkdownFenced(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(FormatMarkdown, &buf, false).Output([]int{1}))
	assert.Equal(t, "```json\n[\n  1\n]\n```\n", buf.String())
}

func TestSection(t *testing.T) {
	s := &Section{
		Title:   "Summary",
		Content: "3 files",
		Sections: []Section{
			{Title: "Helpers", Content: "_common_logic_ab"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, New(FormatText, &buf, false).Output(s))
	assert.Equal(t, "Summary\n=======\n3 files\n\nHelpers\n-------\n_common_logic_ab\n", buf.String())

	buf.Reset()
	require.NoError(t, New(FormatMarkdown, &buf, false).Output(s))
	assert.Equal(t, "## Summary\n\n3 files\n\n### Helpers\n\n_common_logic_ab\n\n", buf.String())
}

func TestReport(t *testing.T) {
	r := &Report{
		Title:    "clonefix",
		Sections: []Renderable{&Section{Title: "A"}, sampleTable()},
	}
	var buf bytes.Buffer
	require.NoError(t, New(FormatMarkdown, &buf, false).Output(r))
	assert.Contains(t, buf.String(), "# clonefix\n\n## A\n\n## Duplicates\n\n")

	data, ok := r.RenderData().(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["sections"], 2)
}

func TestDiff(t *testing.T) {
	d := &Diff{
		File: "m.py",
		Hunks: []Hunk{
			{Line: 4, Description: "wrap g", Old: "    return x+y", New: "    return H(x, y)"},
			{Line: 1, New: "def H(a,b):\n    return a+b\n"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, New(FormatText, &buf, false).Output(d))
	want := "@@ m.py:4 @@ wrap g\n-    return x+y\n+    return H(x, y)\n" +
		"@@ m.py:1 @@\n+def H(a,b):\n+    return a+b\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, New(FormatMarkdown, &buf, false).Output(d))
	assert.Equal(t, "```diff\n"+want+"```\n", buf.String())
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatText, &buf, false)
	f.Success("wrote %s", "m.py")
	f.Warning("%d skipped", 2)
	f.Error("failed")
	assert.Equal(t, "wrote m.py\nWARNING: 2 skipped\nERROR: failed\n", buf.String())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "25.0%", Percent(0.25))
	assert.Equal(t, "0.0%", Percent(0))
}
