// Package reconcile matches free-form keys from legacy content exports
// (image mappings, spreadsheet rows) against known section ids.
//
// Matches come from an explicit alias table or an exact id only. Near
// misses are reported with a suggested id and their edit distance, and are
// never applied.
package reconcile

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/dalemusser/stratacms/internal/domain/models"
)

// Source says how a key was matched.
type Source string

const (
	SourceManual    Source = "manual"
	SourceExact     Source = "exact"
	SourceSuggested Source = "suggested"
	SourceNone      Source = "none"
)

// DefaultMaxDistance is the largest edit distance reported as a suggestion.
const DefaultMaxDistance = 3

// Match is the outcome for one key.
type Match struct {
	Key       string `json:"key"`
	SectionID string `json:"sectionId,omitempty"`
	Source    Source `json:"source"`
	Distance  int    `json:"distance,omitempty"`
}

// Resolved reports whether the match can be applied without review.
func (m Match) Resolved() bool {
	return m.Source == SourceManual || m.Source == SourceExact
}

// Report matches every key against candidates. aliases maps a key to a
// section id and wins over everything else. Keys are compared after
// slugifying so "Eddy Current Testing" matches "eddy-current-testing".
// Results are sorted by key.
func Report(keys, candidates []string, aliases map[string]string, maxDist int) []Match {
	if maxDist < 0 {
		maxDist = 0
	}
	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c] = struct{}{}
	}

	out := make([]Match, 0, len(keys))
	for _, key := range keys {
		out = append(out, match(key, candidates, known, aliases, maxDist))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Unresolved filters matches that need a human decision.
func Unresolved(matches []Match) []Match {
	var out []Match
	for _, m := range matches {
		if !m.Resolved() {
			out = append(out, m)
		}
	}
	return out
}

func match(key string, candidates []string, known map[string]struct{}, aliases map[string]string, maxDist int) Match {
	if id, ok := aliases[key]; ok && id != "" {
		return Match{Key: key, SectionID: id, Source: SourceManual}
	}
	norm := normalizeKey(key)
	if _, ok := known[norm]; ok {
		return Match{Key: key, SectionID: norm, Source: SourceExact}
	}

	best, bestDist := "", maxDist+1
	for _, c := range candidates {
		d := Distance(norm, c)
		if d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	if best == "" || bestDist > maxDist {
		return Match{Key: key, Source: SourceNone}
	}
	return Match{Key: key, SectionID: best, Source: SourceSuggested, Distance: bestDist}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if models.IsValidSlug(key) {
		return key
	}
	return models.DeriveSectionID(key)
}

// Distance returns the Levenshtein distance between a and b, counted in
// runes.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
