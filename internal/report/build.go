package report

import (
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/analyzer/smells"
)

// Build merges duplicate and smell analyses of the same files. Files keep
// the order they have in dup, followed by any only smells saw. Either
// analysis may be nil.
func Build(meta Metadata, dup *duplicates.ProjectAnalysis, sm *smells.ProjectAnalysis) *Report {
	r := &Report{Metadata: meta, Files: []*FileReport{}}
	index := make(map[string]*FileReport)
	file := func(path string) *FileReport {
		if fr, ok := index[path]; ok {
			return fr
		}
		fr := &FileReport{File: path, Pairs: []duplicates.Pair{}, Smells: []smells.Smell{}}
		index[path] = fr
		r.Files = append(r.Files, fr)
		return fr
	}
	failed := make(map[string]bool)
	fail := func(path, msg string) {
		if !failed[path] {
			failed[path] = true
			r.Errors = append(r.Errors, FileError{File: path, Error: msg})
		}
	}

	if dup != nil {
		for _, fa := range dup.Files {
			fr := file(fa.File)
			fr.Pairs = append(fr.Pairs, fa.Pairs...)
			fr.ExactDuplicates = fa.ExactDuplicates
			fr.Duplication = fa.Summary
			r.Thresholds.Similarity = fa.Threshold
		}
		for _, e := range dup.Errors {
			fail(e.File, e.Error)
		}
	}
	if sm != nil {
		r.Thresholds.Smells = sm.Thresholds
		for _, fa := range sm.Files {
			fr := file(fa.File)
			fr.Smells = append(fr.Smells, fa.Smells...)
		}
		for _, e := range sm.Errors {
			fail(e.File, e.Error)
		}
	}

	for _, fr := range r.Files {
		r.Summary.add(fr)
	}
	return r
}

func (s *Summary) add(f *FileReport) {
	s.TotalFiles++
	if f.Findings() > 0 {
		s.FilesWithFindings++
	}
	s.DuplicatePairs += len(f.Pairs)
	s.ExactDuplicates += len(f.ExactDuplicates)
	s.DuplicatedLines += f.Duplication.DuplicatedLines
	s.TotalLines += f.Duplication.TotalLines
	if s.TotalLines > 0 {
		s.DuplicationRatio = float64(s.DuplicatedLines) / float64(s.TotalLines)
	}
	for _, sm := range f.Smells {
		switch sm.Type {
		case smells.TypeLongMethod:
			s.LongMethods++
		case smells.TypeLongParameterList:
			s.LongParameterLists++
		}
	}
}
