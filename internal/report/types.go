// Package report combines duplicate and smell findings per file.
package report

import (
	"time"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/analyzer/smells"
)

// Metadata contains report generation metadata.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	Paths       []string  `json:"paths"`
}

// FileReport holds every finding for one file.
type FileReport struct {
	File            string                      `json:"file"`
	Pairs           []duplicates.Pair           `json:"pairs"`
	ExactDuplicates []duplicates.ExactDuplicate `json:"exact_duplicates,omitempty"`
	Smells          []smells.Smell              `json:"smells"`
	Duplication     duplicates.Summary          `json:"duplication"`
}

// Findings returns the number of pairs, exact duplicates and smells.
func (f *FileReport) Findings() int {
	return len(f.Pairs) + len(f.ExactDuplicates) + len(f.Smells)
}

// FileError is a file that could not be analyzed.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary totals the findings of a report.
type Summary struct {
	TotalFiles         int     `json:"total_files"`
	FilesWithFindings  int     `json:"files_with_findings"`
	DuplicatePairs     int     `json:"duplicate_pairs"`
	ExactDuplicates    int     `json:"exact_duplicates"`
	DuplicatedLines    int     `json:"duplicated_lines"`
	TotalLines         int     `json:"total_lines"`
	DuplicationRatio   float64 `json:"duplication_ratio"`
	LongMethods        int     `json:"long_methods"`
	LongParameterLists int     `json:"long_parameter_lists"`
}

// Report is the combined result over a set of files.
type Report struct {
	Metadata   Metadata      `json:"metadata"`
	Thresholds Thresholds    `json:"thresholds"`
	Files      []*FileReport `json:"files"`
	Errors     []FileError   `json:"errors,omitempty"`
	Summary    Summary       `json:"summary"`
}

// Thresholds records the limits the findings were produced with.
type Thresholds struct {
	Similarity float64           `json:"similarity"`
	Smells     smells.Thresholds `json:"smells"`
}
