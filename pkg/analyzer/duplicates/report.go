package duplicates

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/clonefix/pkg/stats"
)

// ErrTooManyUnits is returned when a file has more units than Config.MaxUnits.
var ErrTooManyUnits = errors.New("too many comparison units")

// Score is the similarity of one compared pair, duplicate or not.
type Score struct {
	I          int     `json:"i"`
	J          int     `json:"j"`
	Similarity float64 `json:"similarity"`
}

// Comparison is the result of scoring a set of units against each other.
type Comparison struct {
	Pairs    []Pair
	Scores   []Score
	Dropped  []Diagnostic
	Compared int
}

// BlockUnits converts segmented blocks into comparison units.
func BlockUnits(blocks []Block) []Unit {
	units := make([]Unit, len(blocks))
	for i, b := range blocks {
		units[i] = Unit{
			Index:   i,
			Type:    UnitCode,
			Kind:    b.Kind,
			Text:    b.Text,
			Line:    b.StartLine,
			EndLine: b.EndLine,
		}
	}
	return units
}

// FunctionUnits converts module functions into comparison units.
func FunctionUnits(fns []ModuleFunction) []Unit {
	units := make([]Unit, len(fns))
	for i, fn := range fns {
		rec := fn.Record()
		units[i] = Unit{
			Index:   i,
			Type:    UnitFunction,
			Kind:    KindFunction,
			Name:    rec.Name,
			Text:    rec.Text,
			Line:    rec.StartLine,
			EndLine: rec.EndLine,
		}
	}
	return units
}

type candidate struct {
	unit   Unit
	tokens TokenSequence
	grams  NGramSet
}

// Compare normalizes every unit, drops the unparsable ones and scores each
// retained unit against every later one. Pairs at or above the threshold
// are returned ordered by (Block1.Index, Block2.Index).
func Compare(units []Unit, cfg Config) (*Comparison, error) {
	if cfg.MaxUnits > 0 && len(units) > cfg.MaxUnits {
		return nil, fmt.Errorf("%w: %d units, limit %d", ErrTooManyUnits, len(units), cfg.MaxUnits)
	}
	k := cfg.NGramSize
	if k <= 0 {
		k = DefaultNGramSize
	}

	norm := Normalizer{LiteralShapes: cfg.LiteralShapes}
	cmp := &Comparison{}
	pool := make([]candidate, 0, len(units))
	for _, u := range units {
		tokens, err := norm.Normalize(u.Text)
		if err != nil {
			cmp.Dropped = append(cmp.Dropped, dropDiagnostic(u, err))
			continue
		}
		pool = append(pool, candidate{unit: u, tokens: tokens, grams: NGrams(tokens, k)})
	}
	cmp.Compared = len(pool)

	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			a, b := pool[i], pool[j]
			score := 0.0
			if len(a.tokens) >= k && len(b.tokens) >= k {
				score = Jaccard(a.grams, b.grams)
			}
			cmp.Scores = append(cmp.Scores, Score{I: a.unit.Index, J: b.unit.Index, Similarity: score})
			if Classify(score, cfg.Threshold) {
				cmp.Pairs = append(cmp.Pairs, Pair{
					Block1:     unitRef(a),
					Block2:     unitRef(b),
					Similarity: score,
					Threshold:  cfg.Threshold,
				})
			}
		}
	}
	return cmp, nil
}

func dropDiagnostic(u Unit, err error) Diagnostic {
	d := Diagnostic{Index: u.Index, Line: u.Line, Reason: err.Error()}
	var ue *UnparsableError
	if errors.As(err, &ue) {
		d.Line = u.Line + ue.Line - 1
		d.Reason = ue.Reason
	}
	return d
}

func unitRef(c candidate) UnitRef {
	return UnitRef{
		Index:      c.unit.Index,
		Text:       c.unit.Text,
		Type:       c.unit.Type,
		Kind:       c.unit.Kind,
		Name:       c.unit.Name,
		Tokens:     c.tokens,
		LineNumber: c.unit.Line,
		EndLine:    c.unit.EndLine,
		Hash:       xxhash.Sum64String(c.tokens.String()),
	}
}

// BuildAnalysis assembles the per-file report.
func BuildAnalysis(file, src string, totalUnits int, cmp *Comparison, exact []ExactDuplicate, cfg Config) *Analysis {
	a := &Analysis{
		File:            file,
		Pairs:           cmp.Pairs,
		ExactDuplicates: exact,
		Dropped:         cmp.Dropped,
		Threshold:       cfg.Threshold,
		NGramSize:       cfg.NGramSize,
	}
	if a.Pairs == nil {
		a.Pairs = []Pair{}
	}

	lines := roaring.New()
	sims := make([]float64, 0, len(cmp.Pairs))
	for _, p := range cmp.Pairs {
		lines.AddRange(uint64(p.Block1.LineNumber), uint64(p.Block1.EndLine)+1)
		lines.AddRange(uint64(p.Block2.LineNumber), uint64(p.Block2.EndLine)+1)
		sims = append(sims, p.Similarity)
	}
	sort.Float64s(sims)

	a.Summary = Summary{
		TotalBlocks:     totalUnits,
		ComparedBlocks:  cmp.Compared,
		TotalPairs:      len(cmp.Pairs),
		DuplicatedLines: int(lines.GetCardinality()),
		TotalLines:      lineCount(src),
		AvgSimilarity:   stats.Mean(sims),
		P50Similarity:   stats.Percentile(sims, 50),
		P95Similarity:   stats.Percentile(sims, 95),
	}
	if a.Summary.TotalLines > 0 {
		a.Summary.DuplicationRatio = float64(a.Summary.DuplicatedLines) / float64(a.Summary.TotalLines)
	}
	return a
}

// lineCount counts lines the way an editor does: a trailing newline does
// not open a new line.
func lineCount(src string) int {
	if src == "" {
		return 0
	}
	n := strings.Count(src, "\n")
	if !strings.HasSuffix(src, "\n") {
		n++
	}
	return n
}
