package duplicates

import "strings"

// DefaultNGramSize is the window length used for similarity.
const DefaultNGramSize = 3

// DefaultThreshold is the similarity at or above which a pair is a duplicate.
const DefaultThreshold = 0.76

// NGram is a contiguous token window joined with a separator that cannot
// occur inside a token.
type NGram string

// NGramSet is the set of windows of one token sequence.
type NGramSet map[NGram]struct{}

// NGrams returns all contiguous k-token windows of tokens. A sequence
// shorter than k yields an empty set.
func NGrams(tokens TokenSequence, k int) NGramSet {
	if k <= 0 {
		k = DefaultNGramSize
	}
	set := make(NGramSet)
	for i := 0; i+k <= len(tokens); i++ {
		set[NGram(strings.Join(tokens[i:i+k], "\x00"))] = struct{}{}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B|, or 0 when the union is empty.
func Jaccard(a, b NGramSet) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similarity scores two token sequences with k-gram Jaccard similarity.
// Either sequence having fewer than k tokens scores 0.
func Similarity(a, b TokenSequence, k int) float64 {
	if k <= 0 {
		k = DefaultNGramSize
	}
	if len(a) < k || len(b) < k {
		return 0
	}
	return Jaccard(NGrams(a, k), NGrams(b, k))
}

// Classify reports whether score counts as a duplicate at threshold.
func Classify(score, threshold float64) bool {
	return score >= threshold
}
