// Package fuzzy scores how alike two short strings are.
//
// Scores run from 0 to 100 and are the normalized InDel similarity:
// 2*LCS / (len(a)+len(b)), computed over runes.
package fuzzy

import (
	"sort"
	"strings"
)

// Scorer compares two strings.
type Scorer func(a, b string) float64

// Ratio is the normalized InDel similarity of a and b. Two empty strings
// score 100.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcs(ra, rb)) / float64(total)
}

// TokenSortRatio sorts the whitespace separated tokens of both strings
// before comparing them, so word order does not matter. Case is kept.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Match is one scored choice.
type Match struct {
	Choice string
	Score  float64
	Index  int
}

// Extract scores query against every choice and returns the best limit
// matches, highest score first. Equal scores keep choice order. A limit of
// zero or less returns every match.
func Extract(query string, choices []string, scorer Scorer, limit int) []Match {
	if scorer == nil {
		scorer = Ratio
	}
	matches := make([]Match, len(choices))
	for i, c := range choices {
		matches[i] = Match{Choice: c, Score: scorer(query, c), Index: i}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
