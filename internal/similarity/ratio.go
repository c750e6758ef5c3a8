// Package similarity implements fuzzy string scoring for knowledge-base
// matching. The score is an alignment ratio over longest matching blocks,
// which rewards large shared substrings over scattered character overlap —
// the right bias for short keyword and question strings.
package similarity

// Ratio returns a similarity score in [0, 1] for two strings.
//
// The score is 2*M/T where M is the total length of all matching blocks
// (found by recursively locating the longest matching block on each side
// of previous matches) and T is the combined length of both inputs.
// Two empty strings score 1.0. Callers are expected to lowercase inputs
// themselves; Ratio performs no normalization.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	b2j := make(map[rune][]int, len(rb))
	for j, r := range rb {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	matched := 0
	stack := []span{{0, len(ra), 0, len(rb)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, k := longestMatch(ra, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		// Recurse into the regions before and after the match.
		stack = append(stack,
			span{s.alo, i, s.blo, j},
			span{i + k, s.ahi, j + k, s.bhi},
		)
	}

	return 2 * float64(matched) / float64(total)
}

// longestMatch finds the longest block of a[alo:ahi] that also appears in
// b[blo:bhi], where b is pre-indexed as rune -> ascending positions.
// Returns the start in a, start in b, and block length (0 if no match).
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestk int) {
	besti, bestj = alo, blo

	// j2len[j] is the length of the longest match ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
