package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/panbanda/clonefix/internal/output"
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
)

const excerptWidth = 48

// excerpt returns the first non-blank line of text, shortened.
func excerpt(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > excerptWidth {
			return line[:excerptWidth-3] + "..."
		}
		return line
	}
	return ""
}

// PairsTable lists the duplicate pairs of every file.
func PairsTable(files []*duplicates.Analysis) *output.Table {
	var rows [][]string
	pairs := 0
	for _, fa := range files {
		for _, p := range fa.Pairs {
			pairs++
			rows = append(rows, []string{
				fa.File,
				fmt.Sprintf("%d-%d", p.Block1.LineNumber, p.Block1.EndLine),
				fmt.Sprintf("%d-%d", p.Block2.LineNumber, p.Block2.EndLine),
				output.Percent(p.Similarity),
				excerpt(p.Block1.Text),
			})
		}
	}
	return output.NewTable("Duplicate blocks",
		[]string{"File", "Block A", "Block B", "Similarity", "Excerpt"},
		rows,
		[]string{"", "", "", strconv.Itoa(pairs) + " pairs", ""},
		nil,
	)
}

// Duplicates renders a detection run: pairs, exact redefinitions and a
// summary. JSON and TOON carry the full analysis.
func Duplicates(project *duplicates.ProjectAnalysis) output.Renderable {
	sections := []output.Renderable{PairsTable(project.Files)}

	var exact [][]string
	for _, fa := range project.Files {
		for _, e := range fa.ExactDuplicates {
			exact = append(exact, []string{fa.File, e.Name, fmt.Sprintf("%d, %d", e.Lines[0], e.Lines[1])})
		}
	}
	if len(exact) > 0 {
		sections = append(sections, output.NewTable("Identical redefinitions",
			[]string{"File", "Function", "Lines"}, exact, nil, nil))
	}

	s := project.Summary
	sections = append(sections, &output.Section{
		Title: "Summary",
		Content: fmt.Sprintf("%d files, %d with clones, %d pairs, %d of %d lines duplicated (%s)",
			s.TotalFiles, s.FilesWithClones, s.TotalPairs, s.DuplicatedLines, s.TotalLines,
			output.Percent(s.DuplicationRatio)),
	})
	sections = append(sections, errorsTable(duplicateErrors(project.Errors))...)
	return &output.Report{Sections: sections, Data: project}
}

func duplicateErrors(errs []duplicates.FileError) []FileError {
	out := make([]FileError, len(errs))
	for i, e := range errs {
		out[i] = FileError{File: e.File, Error: e.Error}
	}
	return out
}

func errorsTable(errs []FileError) []output.Renderable {
	if len(errs) == 0 {
		return nil
	}
	rows := make([][]string, len(errs))
	for i, e := range errs {
		rows[i] = []string{e.File, e.Error}
	}
	return []output.Renderable{output.NewTable("Skipped files", []string{"File", "Error"}, rows, nil, nil)}
}

// RenderData returns the report itself.
func (r *Report) RenderData() any {
	return r
}

func (r *Report) document() *output.Report {
	var smellRows [][]string
	for _, f := range r.Files {
		for _, s := range f.Smells {
			smellRows = append(smellRows, []string{
				f.File,
				s.Function,
				strconv.Itoa(s.StartLine),
				string(s.Type),
				fmt.Sprintf("%d > %d", s.Value, s.Threshold),
				string(s.Severity),
			})
		}
	}

	dups := make([]*duplicates.Analysis, 0, len(r.Files))
	for _, f := range r.Files {
		dups = append(dups, &duplicates.Analysis{File: f.File, Pairs: f.Pairs})
	}

	s := r.Summary
	sections := []output.Renderable{
		PairsTable(dups),
		output.NewTable("Smells",
			[]string{"File", "Function", "Line", "Smell", "Measure", "Severity"},
			smellRows, nil, nil),
		&output.Section{
			Title: "Summary",
			Content: fmt.Sprintf("%d files, %d with findings\n"+
				"%d duplicate pairs, %d identical redefinitions, %s of lines duplicated\n"+
				"%d long methods, %d long parameter lists",
				s.TotalFiles, s.FilesWithFindings,
				s.DuplicatePairs, s.ExactDuplicates, output.Percent(s.DuplicationRatio),
				s.LongMethods, s.LongParameterLists),
		},
	}
	sections = append(sections, errorsTable(r.Errors)...)
	return &output.Report{Title: "Code smells", Sections: sections, Data: r}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	return r.document().RenderText(w, colored)
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	return r.document().RenderMarkdown(w)
}
