package gosortable

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ClosestMatch returns the candidate with the smallest edit distance to
// input, e.g. to suggest a valid value for a mistyped flag. On a tie the
// candidate starting with the same letter as input wins.
func ClosestMatch(input string, candidates []string) string {
	return closestAlias(input, candidates)
}

func closestAlias(input string, dataSet []string) string {
	minDist := math.MaxInt
	closest := ""

	for _, alias := range dataSet {
		dist := levenshtein([]rune(alias), []rune(input))
		if dist < minDist || (dist == minDist && sameFirstRune(alias, input) && !sameFirstRune(closest, input)) {
			minDist = dist
			closest = alias
		}
	}

	return closest
}

func sameFirstRune(a, b string) bool {
	ra, _ := utf8.DecodeRuneInString(strings.ToLower(a))
	rb, _ := utf8.DecodeRuneInString(strings.ToLower(b))

	return ra != utf8.RuneError && ra == rb
}

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	return min(a, min(b, c))
}
