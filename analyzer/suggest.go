package analyzer

import "strings"

// Suggest implements §4.4's "did you mean?" computation: case-insensitive
// exact match, then prefix match, then substring match, then closest edit
// distance, against the candidate set. Returns "" if nothing plausible is
// found.
func Suggest(name string, candidates []string) string {
	lower := strings.ToLower(name)

	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lower) {
			return c
		}
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), lower) {
			return c
		}
	}

	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein(lower, strings.ToLower(c))
		if d > maxTypoDistance(lower) {
			continue
		}
		if bestDist == -1 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// maxTypoDistance caps how many edits still count as "probably a typo" for
// a name of this length, so an unrelated short identifier doesn't get
// suggested for an equally short but unrelated one.
func maxTypoDistance(name string) int {
	switch {
	case len(name) <= 3:
		return 1
	case len(name) <= 8:
		return 2
	default:
		return 3
	}
}

// levenshtein computes the classic single-character insert/delete/substitute
// edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
