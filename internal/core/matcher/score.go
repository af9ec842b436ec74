package matcher

import (
	"sort"
	"strings"
)

// windowWeight discounts partial matches against a longer name.
const windowWeight = 0.9

// Similarity scores two token lists in [0,1]: the best of the full ratio,
// the order-insensitive ratio and a discounted best sliding-window ratio.
func Similarity(query, candidate []string) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}

	best := ratio(strings.Join(query, " "), strings.Join(candidate, " "))
	if best == 1 {
		return 1
	}

	if s := ratio(sortedJoin(query), sortedJoin(candidate)); s > best {
		best = s
	}

	short, long := query, candidate
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < len(long) {
		needle := strings.Join(short, " ")
		for i := 0; i+len(short) <= len(long); i++ {
			s := windowWeight * ratio(needle, strings.Join(long[i:i+len(short)], " "))
			if s > best {
				best = s
			}
		}
	}
	return best
}

func sortedJoin(tokens []string) string {
	cp := append([]string(nil), tokens...)
	sort.Strings(cp)
	return strings.Join(cp, " ")
}

// ratio is 1 - levenshtein/max(len) over runes.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein uses a single row of O(min(n,m)) space.
func levenshtein(a, b []rune) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return len(b)
	}

	row := make([]int, len(a)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(b); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(a); j++ {
			cur := row[j]
			cost := 1
			if b[i-1] == a[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return row[len(a)]
}
