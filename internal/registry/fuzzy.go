package registry

import "strings"

// normalize lowercases name and normalizes path separators to '/', the
// comparison key every fuzzy match in this package is computed against.
func normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "\\", "/")
	return name
}

// FuzzyBestMatch picks the candidate closest to query by normalized
// Levenshtein distance, returning ok=false if candidates is empty. An exact
// normalized match short-circuits the scan. No third-party fuzzy-matching
// library in the retrieved ecosystem pack covers this narrow a need, so the
// matcher is a small hand-rolled Levenshtein scan. Every fuzzy lookup in this
// package (model/LoRA/embedding resolution, wildcard name resolution) goes
// through this one function.
func FuzzyBestMatch(query string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	nq := normalize(query)

	best := candidates[0]
	bestDist := -1
	for _, c := range candidates {
		nc := normalize(c)
		if nc == nq {
			return c, true
		}
		d := levenshtein(nq, nc)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best, true
}

// levenshtein computes the classic edit distance between a and b using a
// two-row dynamic-programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
