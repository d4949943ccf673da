package match

import (
	"strings"

	"golang.org/x/text/cases"
)

// maxScoreRunes bounds the quadratic comparison. Both sides are truncated
// the same way so the score stays symmetric.
const maxScoreRunes = 4096

// Score returns 2*LCS/(len(a)+len(b)) over the case-folded,
// whitespace-collapsed forms of a and b. Empty input scores 0.
func Score(a, b string) float64 {
	ra := []rune(normalizeText(a))
	rb := []rune(normalizeText(b))
	if len(ra) > maxScoreRunes {
		ra = ra[:maxScoreRunes]
	}
	if len(rb) > maxScoreRunes {
		rb = rb[:maxScoreRunes]
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	lcs := longestCommonSubsequence(ra, rb)
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func normalizeText(s string) string {
	// cases.Caser is stateful, so one per call.
	folded := cases.Fold().String(s)
	return strings.Join(strings.Fields(folded), " ")
}

func longestCommonSubsequence(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
