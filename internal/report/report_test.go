package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/clonefix/internal/output"
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/analyzer/smells"
)

func sampleInputs() (*duplicates.ProjectAnalysis, *smells.ProjectAnalysis) {
	pair := duplicates.Pair{
		Block1:     duplicates.UnitRef{LineNumber: 1, EndLine: 2, Text: "def f(a, b):\n    return a + b"},
		Block2:     duplicates.UnitRef{LineNumber: 4, EndLine: 5, Text: "def g(x, y):\n    return x + y"},
		Similarity: 1,
		Threshold:  0.76,
	}
	dup := &duplicates.ProjectAnalysis{
		Files: []*duplicates.Analysis{
			{
				File:      "a.py",
				Pairs:     []duplicates.Pair{pair},
				Threshold: 0.76,
				Summary:   duplicates.Summary{TotalPairs: 1, DuplicatedLines: 4, TotalLines: 5},
			},
			{File: "b.py", Pairs: []duplicates.Pair{}, Threshold: 0.76, Summary: duplicates.Summary{TotalLines: 5}},
		},
		Errors: []duplicates.FileError{{File: "bad.py", Error: "unreadable"}},
	}
	sm := &smells.ProjectAnalysis{
		Files: []*smells.Analysis{
			{File: "b.py", Smells: []smells.Smell{{Type: smells.TypeLongParameterList, Function: "wide", StartLine: 1, Value: 5, Threshold: 3, Severity: smells.SeverityMedium}}},
			{File: "c.py", Smells: []smells.Smell{{Type: smells.TypeLongMethod, Function: "big", StartLine: 3, Value: 40, Threshold: 15, Severity: smells.SeverityHigh}}},
		},
		Errors:     []smells.FileError{{File: "bad.py", Error: "unreadable"}},
		Thresholds: smells.DefaultThresholds(),
	}
	return dup, sm
}

func TestBuild(t *testing.T) {
	dup, sm := sampleInputs()
	r := Build(Metadata{Version: "test", GeneratedAt: time.Unix(0, 0).UTC()}, dup, sm)

	require.Len(t, r.Files, 3)
	assert.Equal(t, "a.py", r.Files[0].File)
	assert.Equal(t, "b.py", r.Files[1].File)
	assert.Equal(t, "c.py", r.Files[2].File)
	assert.Len(t, r.Files[1].Smells, 1)
	assert.NotNil(t, r.Files[2].Pairs)

	require.Len(t, r.Errors, 1)
	assert.Equal(t, "bad.py", r.Errors[0].File)

	assert.Equal(t, Summary{
		TotalFiles:         3,
		FilesWithFindings:  3,
		DuplicatePairs:     1,
		DuplicatedLines:    4,
		TotalLines:         10,
		DuplicationRatio:   0.4,
		LongMethods:        1,
		LongParameterLists: 1,
	}, r.Summary)
	assert.Equal(t, 0.76, r.Thresholds.Similarity)
	assert.Equal(t, smells.DefaultThresholds(), r.Thresholds.Smells)
}

func TestBuild_NilInputs(t *testing.T) {
	r := Build(Metadata{}, nil, nil)
	assert.Empty(t, r.Files)
	assert.Equal(t, Summary{}, r.Summary)
}

func TestReport_Text(t *testing.T) {
	dup, sm := sampleInputs()
	r := Build(Metadata{}, dup, sm)

	var buf bytes.Buffer
	require.NoError(t, output.New(output.FormatText, &buf, false).Output(r))
	out := buf.String()
	assert.Contains(t, out, "Code smells")
	assert.Contains(t, out, "def f(a, b):")
	assert.Contains(t, out, "long_parameter_list")
	assert.Contains(t, out, "40 > 15")
	assert.Contains(t, out, "1 duplicate pairs, 0 identical redefinitions, 40.0% of lines duplicated")
	assert.Contains(t, out, "Skipped files")
}

func TestReport_JSON(t *testing.T) {
	dup, sm := sampleInputs()
	r := Build(Metadata{Version: "test"}, dup, sm)

	var buf bytes.Buffer
	require.NoError(t, output.New(output.FormatJSON, &buf, false).Output(r))
	assert.Contains(t, buf.String(), `"long_parameter_lists": 1`)
	assert.Contains(t, buf.String(), `"version": "test"`)
}

func TestDuplicates(t *testing.T) {
	dup, _ := sampleInputs()
	dup.Files[0].ExactDuplicates = []duplicates.ExactDuplicate{{Name: "f", Lines: [2]int{1, 7}}}
	dup.Summary = duplicates.ProjectSummary{TotalFiles: 2, FilesWithClones: 1, TotalPairs: 1, DuplicatedLines: 4, TotalLines: 10, DuplicationRatio: 0.4}

	var buf bytes.Buffer
	require.NoError(t, output.New(output.FormatMarkdown, &buf, false).Output(Duplicates(dup)))
	out := buf.String()
	assert.Contains(t, out, "## Duplicate blocks")
	assert.Contains(t, out, "| a.py | 1-2 | 4-5 | 100.0% | def f(a, b): |")
	assert.Contains(t, out, "## Identical redefinitions")
	assert.Contains(t, out, "2 files, 1 with clones, 1 pairs, 4 of 10 lines duplicated (40.0%)")

	buf.Reset()
	require.NoError(t, output.New(output.FormatJSON, &buf, false).Output(Duplicates(dup)))
	assert.Contains(t, buf.String(), `"files_with_clones": 1`)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "x = 1", excerpt("\n   x = 1\ny = 2"))
	long := "result = compute_something_really_long(alpha, beta, gamma, delta)"
	got := excerpt(long)
	assert.Len(t, got, excerptWidth)
	assert.True(t, len(got) > 3 && got[len(got)-3:] == "...")
	assert.Equal(t, "", excerpt("  \n"))
}
