package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilaritySelf(t *testing.T) {
	for _, title := range []string{"Breaking Bad", "Città", "La Casa di Carta", "x", "Il Trono di Spade 2011"} {
		n := Normalize(title)
		assert.Equal(t, 1.0, Similarity(n, n), "title %q", title)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "breaking bad"))
	assert.Equal(t, 0.0, Similarity("breaking bad", ""))
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestSimilarityComposite(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		reference string
		want      float64
	}{
		{"token order", "bad breaking", "breaking bad", 0.95},
		{"token subset", "the office us", "the office", 0.95},
		{"partial substring", "breaking bad el camino", "breaking bad", 0.9},
		{"long haystack", "a", "abcdefghij", 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.candidate, tt.reference), 1e-9)
		})
	}
}

func TestSimilarityOrdering(t *testing.T) {
	exact := Similarity("gomorra la serie", "gomorra la serie")
	near := Similarity("gomorra la serie", "gomora la serie")
	far := Similarity("gomorra la serie", "the crown")

	assert.Greater(t, exact, near)
	assert.Greater(t, near, far)
	assert.Greater(t, near, bonusThreshold)
	assert.Less(t, far, bonusThreshold)
}

func TestSimilarityIsBoundedAndSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"breaking bad", "better call saul"},
		{"la casa di carta", "money heist"},
		{"dark", "dark matter"},
		{"the walking dead", "fear the walking dead"},
		{"lost", "lost in space 2018"},
		{"1899", "1883"},
	}

	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
		assert.InDelta(t, ab, ba, 1e-9, "pair %q", p)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, ratio("", ""))
	assert.Equal(t, 1.0, ratio("abc", "abc"))
	assert.Equal(t, 0.0, ratio("abc", "xyz"))
	// one substitution is a delete plus an insert
	assert.InDelta(t, 1-2.0/6.0, ratio("abc", "abd"), 1e-9)
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 1.0, tokenSetRatio("the office", "office the us"))
	assert.Equal(t, 0.0, tokenSetRatio("", ""))
	assert.Less(t, tokenSetRatio("game of thrones", "house of the dragon"), 1.0)
}

func TestPartialTokenRatioSharedWord(t *testing.T) {
	assert.Equal(t, 1.0, partialTokenRatio("dark", "dark matter 2024"))
}
