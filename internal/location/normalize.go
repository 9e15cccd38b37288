// Package location maps user-supplied place names onto the spellings stored
// in the catalog.
package location

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Cutoff is the minimum similarity ratio for a fuzzy match to be accepted
const Cutoff = 0.6

// Normalize returns the canonical form of candidate among known, or nil.
//
// A nil or blank candidate means "no location constraint" and yields nil.
// A case-insensitive exact match wins outright. Otherwise the known location
// with the highest character similarity ratio is returned if the ratio is at
// least Cutoff; equal scores resolve to the alphabetically first location.
// Nil is a normal outcome, never an error.
func Normalize(candidate *string, known []string) *string {
	if candidate == nil {
		return nil
	}
	want := strings.ToLower(strings.TrimSpace(*candidate))
	if want == "" {
		return nil
	}

	canon := canonicalSet(known)
	if len(canon) == 0 {
		return nil
	}

	for _, k := range canon {
		if strings.ToLower(k) == want {
			return &k
		}
	}

	best, score := Closest(want, canon)
	if score < Cutoff {
		return nil
	}
	return &best
}

// Closest returns the known location most similar to candidate and its ratio.
// Comparison is case-insensitive; the returned string keeps its stored form.
func Closest(candidate string, known []string) (string, float64) {
	word := strings.Split(strings.ToLower(candidate), "")
	var (
		best      string
		bestScore = -1.0
	)
	for _, k := range canonicalSet(known) {
		m := difflib.NewMatcher(strings.Split(strings.ToLower(k), ""), word)
		if r := m.Ratio(); r > bestScore {
			best, bestScore = k, r
		}
	}
	return best, bestScore
}

// Similarity returns the character similarity ratio of a and b, ignoring case
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(strings.ToLower(a), ""), strings.Split(strings.ToLower(b), ""))
	return m.Ratio()
}

// canonicalSet returns the trimmed, sorted, case-deduplicated known locations.
// Rooms loaded through the catalog loader share one spelling per place, so
// dropping case duplicates here hides nothing from the location filter.
func canonicalSet(known []string) []string {
	sorted := make([]string, 0, len(known))
	for _, k := range known {
		if k = strings.TrimSpace(k); k != "" {
			sorted = append(sorted, k)
		}
	}
	sort.Strings(sorted)

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, k := range sorted {
		if seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
	}
	return out
}
