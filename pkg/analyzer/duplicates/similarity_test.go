package duplicates

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNGrams(t *testing.T) {
	seq := tokens("def VAR ( VAR ) :")
	grams := NGrams(seq, 3)
	assert.Len(t, grams, 4)
	assert.Contains(t, grams, NGram("def\x00VAR\x00("))

	// repeated windows collapse into one set entry
	assert.Len(t, NGrams(tokens("VAR = VAR = VAR ="), 3), 2)

	assert.Empty(t, NGrams(tokens("VAR ="), 3))
	assert.Len(t, NGrams(seq, 0), 4, "non-positive k falls back to trigrams")
}

func TestSimilarity(t *testing.T) {
	a := tokens("def VAR ( VAR , VAR ) : return VAR + VAR")
	b := tokens("def VAR ( VAR , VAR ) : return VAR - VAR")
	c := tokens("while True : pass")

	tests := []struct {
		name string
		x, y TokenSequence
		want float64
	}{
		{"identical", a, a, 1.0},
		{"disjoint", a, c, 0.0},
		{"short sequence scores zero", tokens("VAR ="), tokens("VAR ="), 0.0},
		{"empty", nil, a, 0.0},
		{"one operator differs", a, b, 8.0 / 12.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.x, tt.y, 3)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	seqs := []TokenSequence{
		tokens("def VAR ( VAR , VAR ) : return VAR + VAR"),
		tokens("def VAR ( VAR ) : VAR = VAR * NUM return VAR"),
		tokens("if VAR : VAR = STR else : VAR = STR"),
		tokens("VAR = [ VAR for VAR in VAR if VAR ]"),
		tokens("return"),
	}
	for i := range seqs {
		for j := range seqs {
			assert.Equal(t, Similarity(seqs[i], seqs[j], 3), Similarity(seqs[j], seqs[i], 3), "pair %d,%d", i, j)
		}
	}
}

func TestClassify_Boundary(t *testing.T) {
	score := Similarity(tokens("VAR VAR VAR NUM"), tokens("VAR VAR VAR STR"), 3)
	assert.InDelta(t, 1.0/3.0, score, 1e-12)

	assert.True(t, Classify(score, score), "equal to threshold is a duplicate")
	assert.False(t, Classify(math.Nextafter(score, 0), score), "just below threshold is not")
	assert.False(t, Classify(score, math.Nextafter(score, 1)))

	assert.True(t, Classify(1.0, DefaultThreshold))
	assert.False(t, Classify(0.0, 0.0001))
}

func TestJaccard_EmptyUnion(t *testing.T) {
	assert.Equal(t, 0.0, Jaccard(NGramSet{}, NGramSet{}))
}
