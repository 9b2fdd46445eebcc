package smells

// Type represents the kind of code smell.
type Type string

const (
	TypeLongMethod        Type = "long_method"
	TypeLongParameterList Type = "long_parameter_list"
)

// Severity represents how far a function exceeds its threshold.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Weight returns a numeric weight for sorting (higher = more severe).
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// severityOf is high once a measure reaches twice its threshold.
func severityOf(value, threshold int) Severity {
	if threshold > 0 && value >= 2*threshold {
		return SeverityHigh
	}
	return SeverityMedium
}

// Smell is one function exceeding a threshold.
type Smell struct {
	Type      Type     `json:"type"`
	Severity  Severity `json:"severity"`
	Function  string   `json:"function"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	// Value is the line count for long methods and the parameter count
	// for long parameter lists.
	Value       int    `json:"value"`
	Threshold   int    `json:"threshold"`
	Description string `json:"description"`
}

// Thresholds configures detection limits. A function is reported when its
// measure is strictly greater than the limit.
type Thresholds struct {
	LongMethodLines    int `json:"long_method_lines"`
	LongParameterCount int `json:"long_parameter_count"`
}

// DefaultThresholds returns the default limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LongMethodLines:    15,
		LongParameterCount: 3,
	}
}

// Analysis holds the smells found in one file.
type Analysis struct {
	File   string  `json:"file"`
	Smells []Smell `json:"smells"`
}

// Count returns the number of smells of type t.
func (a *Analysis) Count(t Type) int {
	n := 0
	for _, s := range a.Smells {
		if s.Type == t {
			n++
		}
	}
	return n
}

// FileError is a file that could not be analyzed.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ProjectAnalysis aggregates per-file results in input order.
type ProjectAnalysis struct {
	Files      []*Analysis `json:"files"`
	Errors     []FileError `json:"errors,omitempty"`
	Thresholds Thresholds  `json:"thresholds"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts.
type Summary struct {
	TotalFiles         int `json:"total_files"`
	LongMethods        int `json:"long_methods"`
	LongParameterLists int `json:"long_parameter_lists"`
	HighSeverity       int `json:"high_severity"`
}

// Add folds one file's smells into the summary.
func (s *Summary) Add(a *Analysis) {
	s.TotalFiles++
	for _, sm := range a.Smells {
		switch sm.Type {
		case TypeLongMethod:
			s.LongMethods++
		case TypeLongParameterList:
			s.LongParameterLists++
		}
		if sm.Severity == SeverityHigh {
			s.HighSeverity++
		}
	}
}
