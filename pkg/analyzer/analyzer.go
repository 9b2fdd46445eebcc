// Package analyzer holds the contracts shared by the per-file analyzers.
package analyzer

import "context"

// SourceAnalyzer analyzes one Python source held in memory. path is only
// used for reporting. P is the per-file result.
type SourceAnalyzer[P any] interface {
	AnalyzeSource(path string, src []byte) (P, error)
}

// FileAnalyzer fans a SourceAnalyzer out over files and aggregates the
// per-file results into T. Analyze stops starting new files once ctx is
// done.
type FileAnalyzer[P, T any] interface {
	SourceAnalyzer[P]
	Analyze(ctx context.Context, files []string) (T, error)
	Close()
}
