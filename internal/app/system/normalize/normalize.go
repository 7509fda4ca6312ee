// Package normalize provides helper functions for consistent string normalization
// of request values. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls in handlers.
package normalize

import (
	"strings"

	"github.com/dalemusser/stratacms/internal/domain/models"
)

// Language normalizes a language code ("pt_BR" becomes "pt-br").
func Language(s string) string {
	return models.NormalizeLanguage(s)
}

// LanguageOr normalizes s, returning def when s is blank.
func LanguageOr(s, def string) string {
	if l := Language(s); l != "" {
		return l
	}
	return Language(def)
}

// Languages splits a comma-separated list of codes, normalizing each and
// dropping blanks and duplicates. Order is preserved.
func Languages(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		l := Language(part)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Slug normalizes a slug path value by trimming whitespace and converting to lowercase.
// It does not slugify free text; use models.Slugify for that.
func Slug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name normalizes a title or category by trimming whitespace.
// Use text.Fold() for case-insensitive comparison keys.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Tag normalizes a tag by trimming whitespace and converting to lowercase.
func Tag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Bool interprets a query flag. "1", "true", "yes" and "on" are true.
func Bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// QueryParam normalizes a query parameter by trimming whitespace.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
