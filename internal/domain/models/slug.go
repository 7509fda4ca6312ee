// internal/domain/models/slug.go
package models

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenGroup = regexp.MustCompile(`\([^()]*\)`)
	slugRe     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify lowercases s, folds diacritics, spells out "&" as "and" and joins
// the remaining alphanumeric runs with single hyphens.
func Slugify(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = stripMarks(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// DeriveSectionID computes the canonical section identifier for a title.
// Parenthesized groups such as abbreviations are dropped before slugging,
// so "Visual Testing (VT)" yields "visual-testing".
func DeriveSectionID(title string) string {
	for {
		next := parenGroup.ReplaceAllString(title, " ")
		if next == title {
			break
		}
		title = next
	}
	return Slugify(title)
}

// IsValidSlug reports whether s is already in canonical slug form.
func IsValidSlug(s string) bool {
	return slugRe.MatchString(s)
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
