package matcher

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

const (
	// token comparisons never reach a perfect score on their own
	unbaseScale = 0.95
	// long/short length ratio above which partial matches are heavily damped
	partialDampLength = 8
	partialScale      = 0.9
	partialScaleLong  = 0.6
	// length ratio under which strings are compared whole
	partialThreshold = 1.5
)

// A replace costs as much as a delete plus an insert, which turns the
// Levenshtein distance into an indel distance.
var indel = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   2,
}

// SimilarityFunc scores two normalized strings in [0,1].
type SimilarityFunc func(candidate, reference string) float64

// Similarity is a weighted composite of whole-string, partial-substring and
// token sort/set ratios. Both arguments are expected to be normalized.
//
// The first argument is the catalog candidate and the second the canonical
// variant it is compared against. Every sub-ratio slides the shorter string
// over the longer one, so the score does not depend on argument order.
func Similarity(candidate, reference string) float64 {
	if candidate == "" || reference == "" {
		return 0
	}

	lenA := utf8.RuneCountInString(candidate)
	lenB := utf8.RuneCountInString(reference)
	lenRatio := float64(max(lenA, lenB)) / float64(min(lenA, lenB))

	score := ratio(candidate, reference)
	if lenRatio < partialThreshold {
		tokens := max(tokenSortRatio(candidate, reference), tokenSetRatio(candidate, reference))
		return clamp(max(score, tokens*unbaseScale))
	}

	scale := partialScale
	if lenRatio >= partialDampLength {
		scale = partialScaleLong
	}

	score = max(score, partialRatio(candidate, reference)*scale)
	score = max(score, partialTokenRatio(candidate, reference)*unbaseScale*scale)
	return clamp(score)
}

// ratio is the normalized indel similarity of two strings.
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 1 - float64(indel.Distance(a, b))/float64(total)
}

// partialRatio is the best ratio of the shorter string against every
// alignment with the longer one, including alignments hanging off either end.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) == len(rb) {
		return max(partialWindows(ra, rb), partialWindows(rb, ra))
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	return partialWindows(ra, rb)
}

func partialWindows(short, long []rune) float64 {
	needle := string(short)
	n := len(short)
	best := 0.0

	for end := 1; end < n; end++ {
		best = max(best, ratio(needle, string(long[:end])))
	}
	for start := 0; start+n <= len(long); start++ {
		best = max(best, ratio(needle, string(long[start:start+n])))
		if best == 1 {
			return 1
		}
	}
	for start := len(long) - n + 1; start < len(long); start++ {
		best = max(best, ratio(needle, string(long[start:])))
	}

	return best
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func tokenSetRatio(a, b string) float64 {
	inter, diffAB, diffBA := splitTokenSets(a, b)
	if len(inter) == 0 && len(diffAB) == 0 && len(diffBA) == 0 {
		return 0
	}
	if len(inter) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 1
	}

	sect := strings.Join(inter, " ")
	ab := strings.Join(diffAB, " ")
	ba := strings.Join(diffBA, " ")

	sectLen := utf8.RuneCountInString(sect)
	abLen := utf8.RuneCountInString(ab)
	baLen := utf8.RuneCountInString(ba)

	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectAB := sectLen + sep + abLen
	sectBA := sectLen + sep + baLen

	result := 1 - float64(indel.Distance(ab, ba))/float64(sectAB+sectBA)
	if sectLen == 0 {
		return result
	}

	sectABRatio := 1 - float64(sep+abLen)/float64(sectLen+sectAB)
	sectBARatio := 1 - float64(sep+baLen)/float64(sectLen+sectBA)
	return max(result, sectABRatio, sectBARatio)
}

func partialTokenRatio(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	inter, diffAB, diffBA := splitTokenSets(a, b)
	if len(inter) > 0 {
		return 1
	}

	result := partialRatio(sortedTokens(a), sortedTokens(b))
	if len(tokensA) == len(diffAB) && len(tokensB) == len(diffBA) {
		return result
	}

	return max(result, partialRatio(strings.Join(diffAB, " "), strings.Join(diffBA, " ")))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

// splitTokenSets returns the sorted unique tokens shared by a and b, only in
// a, and only in b.
func splitTokenSets(a, b string) (inter, diffAB, diffBA []string) {
	setA := tokenSet(a)
	setB := tokenSet(b)

	for token := range setA {
		if _, ok := setB[token]; ok {
			inter = append(inter, token)
		} else {
			diffAB = append(diffAB, token)
		}
	}
	for token := range setB {
		if _, ok := setA[token]; !ok {
			diffBA = append(diffBA, token)
		}
	}

	slices.Sort(inter)
	slices.Sort(diffAB)
	slices.Sort(diffBA)
	return inter, diffAB, diffBA
}

func tokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, token := range strings.Fields(s) {
		set[token] = struct{}{}
	}
	return set
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
