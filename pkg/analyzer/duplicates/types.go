package duplicates

// UnitType names the granularity of a comparison unit.
type UnitType string

const (
	UnitCode     UnitType = "code"     // indentation-delimited block
	UnitFunction UnitType = "function" // module-level function definition
)

// Unit is one candidate for pairwise comparison. Tokens are not stored;
// they are recomputed from Text whenever needed.
type Unit struct {
	Index   int
	Type    UnitType
	Kind    BlockKind
	Name    string
	Text    string
	Line    int
	EndLine int
}

// UnitRef is the reported side of a duplicate pair.
type UnitRef struct {
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Type       UnitType      `json:"type"`
	Kind       BlockKind     `json:"kind"`
	Name       string        `json:"name,omitempty"`
	Tokens     TokenSequence `json:"tokens"`
	LineNumber int           `json:"line_number"`
	EndLine    int           `json:"end_line"`
	Hash       uint64        `json:"hash"`
}

// Pair is a classified duplicate. Block1 always precedes Block2 in
// discovery order.
type Pair struct {
	Block1     UnitRef `json:"block1"`
	Block2     UnitRef `json:"block2"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
}

// Diagnostic records a unit that was dropped before comparison.
type Diagnostic struct {
	Index  int    `json:"index"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Analysis is the clone detection result for one file.
type Analysis struct {
	File            string           `json:"file"`
	Pairs           []Pair           `json:"pairs"`
	ExactDuplicates []ExactDuplicate `json:"exact_duplicates,omitempty"`
	Dropped         []Diagnostic     `json:"dropped,omitempty"`
	Summary         Summary          `json:"summary"`
	Threshold       float64          `json:"threshold"`
	NGramSize       int              `json:"ngram_size"`
}

// Summary provides aggregate statistics.
type Summary struct {
	TotalBlocks      int     `json:"total_blocks"`
	ComparedBlocks   int     `json:"compared_blocks"`
	TotalPairs       int     `json:"total_pairs"`
	DuplicatedLines  int     `json:"duplicated_lines"`
	TotalLines       int     `json:"total_lines"`
	DuplicationRatio float64 `json:"duplication_ratio"`
	AvgSimilarity    float64 `json:"avg_similarity"`
	P50Similarity    float64 `json:"p50_similarity"`
	P95Similarity    float64 `json:"p95_similarity"`
}

// FileError is a file that could not be analyzed.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ProjectAnalysis aggregates per-file results in input order.
type ProjectAnalysis struct {
	Files   []*Analysis    `json:"files"`
	Errors  []FileError    `json:"errors,omitempty"`
	Summary ProjectSummary `json:"summary"`
}

// ProjectSummary totals the per-file summaries.
type ProjectSummary struct {
	TotalFiles       int     `json:"total_files"`
	FilesWithClones  int     `json:"files_with_clones"`
	TotalPairs       int     `json:"total_pairs"`
	DuplicatedLines  int     `json:"duplicated_lines"`
	TotalLines       int     `json:"total_lines"`
	DuplicationRatio float64 `json:"duplication_ratio"`
}

// Add folds one file's summary into the totals.
func (s *ProjectSummary) Add(a *Analysis) {
	s.TotalFiles++
	if len(a.Pairs) > 0 {
		s.FilesWithClones++
	}
	s.TotalPairs += a.Summary.TotalPairs
	s.DuplicatedLines += a.Summary.DuplicatedLines
	s.TotalLines += a.Summary.TotalLines
	if s.TotalLines > 0 {
		s.DuplicationRatio = float64(s.DuplicatedLines) / float64(s.TotalLines)
	}
}

// Config holds duplicate detection configuration.
type Config struct {
	Threshold     float64
	NGramSize     int
	MinBlockLines int
	LiteralShapes bool
	// MaxUnits caps the number of comparison units per file; 0 disables it.
	MaxUnits int
}

// DefaultConfig returns the detection defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:     DefaultThreshold,
		NGramSize:     DefaultNGramSize,
		MinBlockLines: 2,
	}
}
