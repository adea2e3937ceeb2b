// Package match resolves a free-text event reference against a user's
// upcoming events.
package match

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mithrel/tickler/pkg/api"
)

// DefaultThreshold is the minimum blended similarity for a candidate to
// count as a match.
const DefaultThreshold = 0.3

// Score blends two similarity measures and takes their maximum: a
// normalized edit-distance ratio over the whole strings, and the overlap
// of lowercase word sets. Identical strings score 1.0.
func Score(query, description string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	d := strings.ToLower(strings.TrimSpace(description))
	s := stringRatio(q, d)
	if w := wordOverlap(q, d); w > s {
		s = w
	}
	return s
}

// Match returns the candidates scoring at or above threshold, ordered
// ascending by scheduled time rather than by score: once a query is close
// enough, the soonest event is the most useful disambiguation order.
// The caller branches on result cardinality (none / exactly one / several).
func Match(query string, candidates []api.Event, threshold float64) []api.Event {
	var out []api.Event
	for _, e := range candidates {
		if Score(query, e.Description) >= threshold {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

// Suggest returns up to n event descriptions fuzzily close to the query,
// for a "did you mean" prompt when nothing clears the threshold.
func Suggest(query string, candidates []api.Event, n int) []string {
	descs := make([]string, len(candidates))
	for i, e := range candidates {
		descs[i] = e.Description
	}
	matches := fuzzy.Find(query, descs)
	if len(matches) == 0 {
		return nil
	}
	limit := n
	if n <= 0 || len(matches) < limit {
		limit = len(matches)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = matches[i].Str
	}
	return out
}

// stringRatio is 1 − levenshtein(a,b)/max(len(a),len(b)), over runes.
func stringRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	dist := prev[lb]
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(dist)/float64(maxLen)
}

// wordOverlap is |intersection| / max(|words a|, |words b|); 0 when both
// sides are empty.
func wordOverlap(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	maxLen := len(wa)
	if len(wb) > maxLen {
		maxLen = len(wb)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(common) / float64(maxLen)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
