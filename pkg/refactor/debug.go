package refactor

import (
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/parser"
)

// Debug dumps the function-level detection of src at the given threshold.
// The Refactorer's own threshold is not consulted or changed.
func (r *Refactorer) Debug(src []byte, threshold float64) (*DebugDump, error) {
	psr := parser.New()
	defer psr.Close()
	res, err := parse(psr, src)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	set := duplicates.ExtractFunctions(res)
	d := r.detect(set, src, threshold)

	dump := &DebugDump{
		Threshold:    threshold,
		Tokens:       make(map[string]duplicates.TokenSequence, len(d.cands)),
		Similarities: make([]FunctionScore, 0, len(d.scores)),
		Duplicates:   []FunctionScore{},
		Groups:       d.groups,
	}
	if dump.Groups == nil {
		dump.Groups = []Group{}
	}
	for _, fn := range set.Live() {
		dump.Functions = append(dump.Functions, fn.Record())
	}
	for _, fn := range set.Shadowed() {
		dump.Shadowed = append(dump.Shadowed, fn.Record())
	}
	for _, c := range d.cands {
		dump.Tokens[c.rec().Name] = c.tokens
	}
	for _, s := range d.scores {
		score := FunctionScore{
			A:          d.cands[s.i].rec().Name,
			B:          d.cands[s.j].rec().Name,
			Similarity: s.similarity,
		}
		dump.Similarities = append(dump.Similarities, score)
		if duplicates.Classify(s.similarity, threshold) {
			dump.Duplicates = append(dump.Duplicates, score)
		}
	}
	return dump, nil
}
